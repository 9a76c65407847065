package model

const PrescriptionStatusSuccess = "success"

// PrescriptionResult is the OCR pipeline output for one prescription image.
type PrescriptionResult struct {
	OCRText             string               `json:"ocr_text"`
	ProcessingStatus    string               `json:"processing_status"`
	StructuredInfo      *PrescriptionInfo    `json:"structured_info,omitempty"`
	RecognizedMedicines []RecognizedMedicine `json:"recognized_medicines,omitempty"`
	Timestamp           string               `json:"timestamp,omitempty"`
}

type PrescriptionInfo struct {
	PatientName  string   `json:"patient_name,omitempty"`
	Date         string   `json:"date,omitempty"`
	Medicines    []string `json:"medicines,omitempty"`
	Instructions []string `json:"instructions,omitempty"`
}

type RecognizedMedicine struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Disease     []string `json:"disease"`
}

// Clone returns a deep copy of p.
func (p PrescriptionResult) Clone() PrescriptionResult {
	out := p
	if p.StructuredInfo != nil {
		info := *p.StructuredInfo
		info.Medicines = cloneStrings(info.Medicines)
		info.Instructions = cloneStrings(info.Instructions)
		out.StructuredInfo = &info
	}
	if p.RecognizedMedicines != nil {
		out.RecognizedMedicines = make([]RecognizedMedicine, len(p.RecognizedMedicines))
		for i, m := range p.RecognizedMedicines {
			m.Disease = cloneStrings(m.Disease)
			out.RecognizedMedicines[i] = m
		}
	}
	return out
}
