package smartrest

// TranslateUpload maps an upload outcome to a terminal status record.
//
// A nil err yields SUCCESSFUL carrying reference (omitted when empty);
// otherwise FAILED with "Upload failed with <err>".
func TranslateUpload(err error, reference string, op Operation) string {
	if err != nil {
		return Fail(op, "Upload failed with "+err.Error())
	}
	if reference == "" {
		return Succeed(op)
	}
	return Succeed(op, reference)
}

// TranslateDownload maps a download outcome to a terminal status record.
func TranslateDownload(err error, reference string, op Operation) string {
	if err != nil {
		return Fail(op, "Download failed with "+err.Error())
	}
	if reference == "" {
		return Succeed(op)
	}
	return Succeed(op, reference)
}
