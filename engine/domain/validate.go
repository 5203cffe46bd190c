package domain

// ValidateRawDocument checks a RawDocument before ingestion. A missing cite
// is allowed (the pipeline assigns a surrogate); empty text or an unknown
// source is not.
func ValidateRawDocument(doc RawDocument) error {
	if doc.Text == "" {
		return NewValidationError("text", "", ErrEmptyText)
	}
	if !ValidSources[doc.Source] {
		return NewValidationError("source", string(doc.Source), ErrUnknownSource)
	}
	return nil
}
