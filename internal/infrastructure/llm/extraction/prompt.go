package extraction

import (
	"fmt"
	"strings"

	"github.com/medsync/medsync-server/internal/core/domain"
)

const extractionPrompt = `Analyze this medical document image and extract the following information:
- title: A descriptive title for this document (e.g. "Blood Test Results", "Prescription for Amoxicillin")
- document_type: One of: prescription, lab_report, imaging, discharge_summary, insurance, other
- doctor_name: The doctor's name if visible, otherwise empty string
- record_date: The date on the document in YYYY-MM-DD format if visible, otherwise empty string
- notes: A brief summary of key information in the document

Respond with a JSON object containing exactly these fields. If the image is not a medical document, still fill in the fields as best you can with document_type "other".`

// buildSearchPrompt folds the user's record metadata into a matching prompt.
// Only metadata fields go over the wire; document images stay home.
func buildSearchPrompt(query string, records []domain.DocumentRecord) string {
	var b strings.Builder
	b.WriteString("You are a medical records search assistant. The user has the following medical records:\n\n")
	for _, r := range records {
		fmt.Fprintf(&b, "ID: %s | Title: %s | Type: %s | Doctor: %s | Date: %s | Notes: %s\n",
			r.ID, r.Title, r.DocumentType, r.DoctorName, r.RecordDate, r.Notes)
	}
	fmt.Fprintf(&b, "\nThe user is searching for: %q\n\n", query)
	b.WriteString(`Return the IDs of records relevant to the query, most relevant first. ` +
		`Respond with a JSON object: {"matched_record_ids": ["id1", "id2"]}. ` +
		`Return an empty list when nothing matches.`)
	return b.String()
}
