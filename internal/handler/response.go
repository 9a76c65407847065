package handler

type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func NewSuccessResponse(message string) *Response {
	return &Response{
		Success: true,
		Message: message,
	}
}
