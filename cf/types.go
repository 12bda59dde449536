package cf

import "strconv"

// Ref is a foreign object reference as it crosses the calling convention.
// Ref 0 is NULL.
type Ref = uint64

// TypeID is the runtime type tag of a foreign object.
type TypeID uint64

const (
	StringTypeID TypeID = iota + 1
	DataTypeID
	NumberTypeID
	ArrayTypeID
	DictionaryTypeID
	BooleanTypeID
	DateTypeID
	URLTypeID
	ErrorTypeID
	ReadStreamTypeID
	WriteStreamTypeID
)

var typeNames = [...]string{
	StringTypeID:      "CFString",
	DataTypeID:        "CFData",
	NumberTypeID:      "CFNumber",
	ArrayTypeID:       "CFArray",
	DictionaryTypeID:  "CFDictionary",
	BooleanTypeID:     "CFBoolean",
	DateTypeID:        "CFDate",
	URLTypeID:         "CFURL",
	ErrorTypeID:       "CFError",
	ReadStreamTypeID:  "CFReadStream",
	WriteStreamTypeID: "CFWriteStream",
}

func (t TypeID) String() string {
	if t > 0 && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "CFType(" + strconv.FormatUint(uint64(t), 10) + ")"
}

// String encodings understood by CFStringCreateWithBytes and
// CFStringCreateExternalRepresentation.
const (
	EncodingMacRoman uint32 = 0
	EncodingASCII    uint32 = 0x0600
	EncodingUTF8     uint32 = 0x08000100
	EncodingUTF16    uint32 = 0x0100
	EncodingUTF16BE  uint32 = 0x10000100
	EncodingUTF16LE  uint32 = 0x14000100
)

// Property list formats.
const (
	FormatOpenStep int64 = 1
	FormatXML      int64 = 100
	FormatBinary   int64 = 200
)

// Stream statuses returned by CFWriteStreamGetStatus.
const (
	StreamStatusNotOpen int64 = 0
	StreamStatusOpen    int64 = 2
	StreamStatusClosed  int64 = 6
	StreamStatusError   int64 = 7
)

// Property list mutability options.
const (
	OptionImmutable                 int64 = 0
	OptionMutableContainers         int64 = 1
	OptionMutableContainersAndLeave int64 = 2
)

// URL path styles.
const (
	PathStylePOSIX   int64 = 0
	PathStyleWindows int64 = 2
)

// Error domains and codes reported through error-out slots.
const (
	CocoaErrorDomain = "NSCocoaErrorDomain"
	POSIXErrorDomain = "NSPOSIXErrorDomain"

	ErrorCodeReadCorrupt  int64 = 3840
	ErrorCodeWriteInvalid int64 = 3851
	ErrorCodeStream       int64 = 2
)

// Data symbol names.
const (
	SymBooleanTrue                  = "kCFBooleanTrue"
	SymBooleanFalse                 = "kCFBooleanFalse"
	SymTypeArrayCallBacks           = "kCFTypeArrayCallBacks"
	SymTypeDictionaryKeyCallBacks   = "kCFTypeDictionaryKeyCallBacks"
	SymTypeDictionaryValueCallBacks = "kCFTypeDictionaryValueCallBacks"
	SymAllocatorDefault             = "kCFAllocatorDefault"
)
