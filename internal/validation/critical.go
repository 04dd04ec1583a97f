package validation

import (
	"shipportal/internal/model"
)

// CriticalCheck re-validates sender and receiver GST number, mobile and email
// before the addresses step is left. It collects every violation into one
// report. In the edit flow a blank GST number is accepted.
func (v *Validator) CriticalCheck(d model.ShipmentDraft, flow Flow) Errors {
	var errs Errors
	for _, blk := range []struct {
		prefix, label string
		addr          model.Address
	}{
		{"sender", "Sender", d.Sender},
		{"receiver", "Receiver", d.Receiver},
	} {
		gst := text(blk.addr.GSTNo)
		if !(flow == FlowEdit && gst == "") && !gstinRegex.MatchString(gst) {
			errs = append(errs, FieldError{Field: blk.prefix + ".gstNo", Message: blk.label + " GST number must be exactly 15 alphanumeric characters"})
		}
		if !mobileRegex.MatchString(text(blk.addr.Mobile)) {
			errs = append(errs, FieldError{Field: blk.prefix + ".mobile", Message: blk.label + " mobile must be exactly 10 digits"})
		}
		if !emailRegex.MatchString(text(blk.addr.Email)) {
			errs = append(errs, FieldError{Field: blk.prefix + ".email", Message: blk.label + " email must be a valid email address"})
		}
	}
	return errs
}
