package catalog

import (
	dErrors "pehchan/pkg/domain-errors"
)

// MimeClass is the coarse content classification for an uploaded file.
type MimeClass string

const (
	MimeImage MimeClass = "image"
	MimePDF   MimeClass = "pdf"
)

// MaxBytesPerFile is 5 MiB, uniform across methods and slots.
const MaxBytesPerFile = 5 << 20

// Well-known slot names.
const (
	SlotGovernmentID = "governmentId"
	SlotAadhaarCard  = "aadhaarCard"
	SlotPersonPhoto  = "personPhoto"
)

// Slot describes one logical document slot and its per-file constraints.
type Slot struct {
	Name             string
	MinCount         int
	MaxCount         int
	MaxBytesPerFile  int64
	AllowedMimeTypes []MimeClass
}

// Allows reports whether the slot accepts the given mime class.
func (s Slot) Allows(mime MimeClass) bool {
	for _, m := range s.AllowedMimeTypes {
		if m == mime {
			return true
		}
	}
	return false
}

// RequirementsFor resolves the exact document slots for a method.
// Single-document methods take front+back in one slot; dual-document methods
// add a second two-file Aadhaar slot; every method takes exactly one live
// person photo, image only. Pure: no storage, no side effects.
func RequirementsFor(method Method) ([]Slot, error) {
	if !method.IsKnown() {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown verification method")
	}

	idSlot := Slot{
		Name:             SlotGovernmentID,
		MinCount:         2,
		MaxCount:         2,
		MaxBytesPerFile:  MaxBytesPerFile,
		AllowedMimeTypes: []MimeClass{MimeImage, MimePDF},
	}
	photoSlot := Slot{
		Name:             SlotPersonPhoto,
		MinCount:         1,
		MaxCount:         1,
		MaxBytesPerFile:  MaxBytesPerFile,
		AllowedMimeTypes: []MimeClass{MimeImage},
	}

	slots := []Slot{idSlot}
	if method.IsDualDocument() {
		slots = append(slots, Slot{
			Name:             SlotAadhaarCard,
			MinCount:         2,
			MaxCount:         2,
			MaxBytesPerFile:  MaxBytesPerFile,
			AllowedMimeTypes: []MimeClass{MimeImage, MimePDF},
		})
	}
	return append(slots, photoSlot), nil
}
