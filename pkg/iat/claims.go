package iat

// Claims is the decoded payload of an initial attestation token. Optional
// claims are pointers so an absent claim can be told apart from a zero value.
type Claims struct {
	Profile                *string             `cbor:"-75000,keyasint,omitempty" json:"profile,omitempty"`
	ClientID               int32               `cbor:"-75001,keyasint,omitempty" json:"client-id"`
	SecurityLifecycle      Lifecycle           `cbor:"-75002,keyasint,omitempty" json:"security-lifecycle"`
	ImplementationID       []byte              `cbor:"-75003,keyasint,omitempty" json:"implementation-id,omitempty"`
	BootSeed               []byte              `cbor:"-75004,keyasint,omitempty" json:"boot-seed,omitempty"`
	HardwareVersion        *string             `cbor:"-75005,keyasint,omitempty" json:"hardware-version,omitempty"`
	SoftwareComponents     []SoftwareComponent `cbor:"-75006,keyasint,omitempty" json:"software-components,omitempty"`
	NoSoftwareMeasurements *uint64             `cbor:"-75007,keyasint,omitempty" json:"no-software-measurements,omitempty"`
	Challenge              []byte              `cbor:"-75008,keyasint,omitempty" json:"challenge"`
	InstanceID             []byte              `cbor:"-75009,keyasint,omitempty" json:"instance-id,omitempty"`
	VerificationService    *string             `cbor:"-75010,keyasint,omitempty" json:"verification-service-indicator,omitempty"`
}

// SoftwareComponent is one entry of the software components claim. Measurement
// claims are either flat in the component or nested under Measurement.
type SoftwareComponent struct {
	MeasurementType  string       `cbor:"1,keyasint,omitempty" json:"measurement-type,omitempty"`
	MeasurementValue []byte       `cbor:"2,keyasint,omitempty" json:"measurement-value,omitempty"`
	Epoch            *uint64      `cbor:"3,keyasint,omitempty" json:"epoch,omitempty"`
	Version          string       `cbor:"4,keyasint,omitempty" json:"version,omitempty"`
	SignerID         []byte       `cbor:"5,keyasint,omitempty" json:"signer-id,omitempty"`
	MeasurementDesc  string       `cbor:"6,keyasint,omitempty" json:"measurement-description,omitempty"`
	Measurement      *Measurement `cbor:"7,keyasint,omitempty" json:"measurement,omitempty"`
}

// Measurement is the nested measurement map of a software component.
type Measurement struct {
	Type        string `cbor:"1,keyasint,omitempty" json:"type,omitempty"`
	Value       []byte `cbor:"2,keyasint,omitempty" json:"value,omitempty"`
	Description string `cbor:"6,keyasint,omitempty" json:"description,omitempty"`
}

// Value returns the measurement value of the component wherever it was encoded.
func (c SoftwareComponent) Value() []byte {
	if c.Measurement != nil && len(c.Measurement.Value) > 0 {
		return c.Measurement.Value
	}
	return c.MeasurementValue
}
