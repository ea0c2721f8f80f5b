package bootdata

// BootDataError is a typed error for boot data errors.
type BootDataError string

func (e BootDataError) Error() string { return string(e) }

const (
	// ErrMalformedBlob is returned when the region header is invalid.
	ErrMalformedBlob = BootDataError("malformed boot data")
	// ErrBadMagic is returned when the region does not start with Magic.
	ErrBadMagic = BootDataError("bad boot data magic")
	// ErrTruncatedHeader is returned when the region is shorter than its header.
	ErrTruncatedHeader = BootDataError("truncated boot data header")
	// ErrMalformedRecord is returned when a record does not fit the region.
	ErrMalformedRecord = BootDataError("malformed boot data record")
	// ErrNoBootData is returned by a Source that has no region to offer.
	ErrNoBootData = BootDataError("no boot data")
	// ErrBufferTooSmall is returned when the destination cannot hold the copied records.
	ErrBufferTooSmall = BootDataError("boot data buffer too small")
)
