// Package iat defines the claim set of a PSA initial attestation token: CBOR labels,
// the security lifecycle enum and the decoded claim structures.
package iat

// armRangeBase is the start of the label range allocated to the PSA token profile.
const armRangeBase = -75000

// Top level claim labels.
const (
	LabelProfileDefinition    int64 = armRangeBase - 0
	LabelClientID             int64 = armRangeBase - 1
	LabelSecurityLifecycle    int64 = armRangeBase - 2
	LabelImplementationID     int64 = armRangeBase - 3
	LabelBootSeed             int64 = armRangeBase - 4
	LabelHardwareVersion      int64 = armRangeBase - 5
	LabelSoftwareComponents   int64 = armRangeBase - 6
	LabelNoSoftwareComponents int64 = armRangeBase - 7
	LabelChallenge            int64 = armRangeBase - 8
	LabelInstanceID           int64 = armRangeBase - 9
	LabelVerificationService  int64 = armRangeBase - 10
)

// Software component map labels.
const (
	ComponentMeasurementType  int64 = 1
	ComponentMeasurementValue int64 = 2
	ComponentEpoch            int64 = 3
	ComponentVersion          int64 = 4
	ComponentSignerID         int64 = 5
	ComponentMeasurementDesc  int64 = 6
	// ComponentMeasurement holds the nested measurement map when the token
	// is built with nested measurements.
	ComponentMeasurement int64 = 7
)

const (
	// NoSoftwareMeasurements is the fixed value of the no-software-measurements claim.
	NoSoftwareMeasurements = 1

	// UEIDTypeRandom is the EAT UEID type byte prefixed to the instance ID.
	UEIDTypeRandom byte = 0x01

	// BootSeedSize is the length of the boot seed claim.
	BootSeedSize = 32

	// DefaultProfile is the profile definition claim of the PSA IoT profile.
	DefaultProfile = "PSA_IOT_PROFILE_1"
)

// Challenge sizes accepted by the token service.
const (
	ChallengeSize32 = 32
	ChallengeSize48 = 48
	ChallengeSize64 = 64
	// ChallengeSizeWithOptions is a 32 byte challenge followed by a packed
	// 32 bit option word.
	ChallengeSizeWithOptions = 36
)

var labelNames = map[int64]string{
	LabelProfileDefinition:    "profile-definition",
	LabelClientID:             "client-id",
	LabelSecurityLifecycle:    "security-lifecycle",
	LabelImplementationID:     "implementation-id",
	LabelBootSeed:             "boot-seed",
	LabelHardwareVersion:      "hardware-version",
	LabelSoftwareComponents:   "software-components",
	LabelNoSoftwareComponents: "no-software-measurements",
	LabelChallenge:            "challenge",
	LabelInstanceID:           "instance-id",
	LabelVerificationService:  "verification-service-indicator",
}

// LabelName returns the claim name of a top level label, or "unknown".
func LabelName(label int64) string {
	if name, ok := labelNames[label]; ok {
		return name
	}
	return "unknown"
}
