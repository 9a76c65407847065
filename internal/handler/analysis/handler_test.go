package analysis

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/medbot-api/internal/model"
	analysisService "github.com/jwalitptl/medbot-api/internal/service/analysis"
)

type fakeAnalysis struct {
	available  bool
	uploadErr  error
	analyzeErr error
	ocrErr     error

	uploadedFields []string
	analyzed       []string
	processed      []string
}

func (f *fakeAnalysis) Available() bool { return f.available }

func (f *fakeAnalysis) SaveUpload(field string, fh *multipart.FileHeader) (*model.UploadResponse, error) {
	f.uploadedFields = append(f.uploadedFields, field)
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	return &model.UploadResponse{
		ImagePath:    "uploads/" + field + "-1-abcd1234.png",
		Filename:     field + "-1-abcd1234.png",
		OriginalName: fh.Filename,
		Size:         fh.Size,
	}, nil
}

func (f *fakeAnalysis) AnalyzeECG(_ context.Context, imagePath string) (*model.HealthRecord, error) {
	f.analyzed = append(f.analyzed, imagePath)
	if f.analyzeErr != nil {
		return nil, f.analyzeErr
	}
	return &model.HealthRecord{FileName: "ecg.png", HeartRate: model.HeartRate{Label: "Heart Rate", Value: "64", Unit: "BPM"}}, nil
}

func (f *fakeAnalysis) ProcessPrescription(_ context.Context, imagePath string) (*model.PrescriptionResult, error) {
	f.processed = append(f.processed, imagePath)
	if f.ocrErr != nil {
		return nil, f.ocrErr
	}
	return &model.PrescriptionResult{OCRText: "Amoxicillin", ProcessingStatus: model.PrescriptionStatusSuccess}, nil
}

func setup(svc analysisService.AnalysisService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(svc).RegisterRoutes(r.Group("/api"))
	return r
}

func multipartRequest(t *testing.T, path, field, filename string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	h.Set("Content-Type", "image/png")
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write([]byte("\x89PNG image"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestUploadECG(t *testing.T) {
	svc := &fakeAnalysis{}
	r := setup(svc)

	for _, path := range []string{"/api/ecg/upload", "/api/upload-ecg"} {
		w := serve(r, multipartRequest(t, path, "ecgImage", "scan.png"))
		require.Equal(t, http.StatusOK, w.Code, path)
		assert.JSONEq(t, `{
			"imagePath": "uploads/ecgImage-1-abcd1234.png",
			"filename": "ecgImage-1-abcd1234.png",
			"originalName": "scan.png",
			"size": 10
		}`, w.Body.String())
	}
	assert.Equal(t, []string{"ecgImage", "ecgImage"}, svc.uploadedFields)
}

func TestUploadECG_Errors(t *testing.T) {
	w := serve(setup(&fakeAnalysis{}), multipartRequest(t, "/api/ecg/upload", "wrongField", "scan.png"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"No file uploaded"}`, w.Body.String())

	w = serve(setup(&fakeAnalysis{uploadErr: analysisService.ErrNotImage}), multipartRequest(t, "/api/ecg/upload", "ecgImage", "a.txt"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(setup(&fakeAnalysis{uploadErr: analysisService.ErrTooLarge}), multipartRequest(t, "/api/ecg/upload", "ecgImage", "a.png"))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestAnalyzeECG(t *testing.T) {
	svc := &fakeAnalysis{available: true}
	r := setup(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/ecg/analyze", strings.NewReader(`{"imagePath":"uploads/a.png"}`))
	req.Header.Set("Content-Type", "application/json")
	w := serve(r, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"fileName":"ecg.png"`)
	assert.Equal(t, []string{"uploads/a.png"}, svc.analyzed)
}

func TestAnalyzeECG_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{"missing path", `{}`, nil, http.StatusBadRequest},
		{"unavailable", `{"imagePath":"uploads/a.png"}`, analysisService.ErrAnalyzerUnavailable, http.StatusServiceUnavailable},
		{"outside uploads", `{"imagePath":"/etc/passwd"}`, analysisService.ErrInvalidPath, http.StatusBadRequest},
		{"script failed", `{"imagePath":"uploads/a.png"}`, fmt.Errorf("%w: exit 1", analysisService.ErrAnalysisFailed), http.StatusInternalServerError},
		{"bad output", `{"imagePath":"uploads/a.png"}`, analysisService.ErrBadOutput, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := setup(&fakeAnalysis{analyzeErr: tt.err})
			req := httptest.NewRequest(http.MethodPost, "/api/ecg-analysis", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")

			w := serve(r, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestProcessPrescription(t *testing.T) {
	svc := &fakeAnalysis{}
	r := setup(svc)

	w := serve(r, multipartRequest(t, "/api/prescriptions/ocr", "file", "rx.jpg"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ocr_text":"Amoxicillin"`)
	assert.Equal(t, []string{"uploads/file-1-abcd1234.png"}, svc.processed)
}

func TestProcessPrescription_Failure(t *testing.T) {
	r := setup(&fakeAnalysis{ocrErr: fmt.Errorf("%w: processing status \"error\"", analysisService.ErrAnalysisFailed)})

	w := serve(r, multipartRequest(t, "/api/prescription-ocr", "file", "rx.jpg"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Failed to process prescription image"}`, w.Body.String())
}
