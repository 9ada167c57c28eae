// Package validator provides composable validation rules.
//
// Each rule pairs a check with the error reported when it fails; Apply runs
// them all and returns ValidationErrors listing every failed field.
//
//	err := validator.Apply(
//		validator.RequiredString("type", req.Type),
//		validator.NoWhitespace("type", req.Type),
//		validator.RequiredJSON("payload", req.Payload),
//	)
//	if ve := validator.ExtractValidationErrors(err); ve != nil {
//		writeJSON(w, http.StatusBadRequest, ve.Fields())
//	}
package validator
