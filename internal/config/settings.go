package config

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/DIMO-Network/initial-attestation/pkg/attest"
	"github.com/DIMO-Network/initial-attestation/pkg/iat"
	"github.com/DIMO-Network/initial-attestation/pkg/platform"
)

const (
	// PlatformStatic resolves platform claims from these settings.
	PlatformStatic = "static"
	// PlatformNitro resolves platform claims from the Nitro Security Module.
	PlatformNitro = "nitro"
)

// Settings contains the application config
type Settings struct {
	Environment string `yaml:"ENVIRONMENT"`
	LogLevel    string `yaml:"LOG_LEVEL"`
	Port        int    `yaml:"PORT"`
	MonPort     int    `yaml:"MON_PORT"`
	// VsockPort serves the API on vsock instead of PORT when set.
	VsockPort uint32 `yaml:"VSOCK_PORT"`
	// ClientID is the identity of every caller of this listener. Negative
	// values mark non-secure callers.
	ClientID int32 `yaml:"CLIENT_ID"`

	Platform     string `yaml:"PLATFORM"`
	BootDataFile string `yaml:"BOOT_DATA_FILE"`
	// KeyFiles is a comma separated list of PEM private key files, one per
	// key slot starting at 0. Empty entries leave a slot unprovisioned.
	KeyFiles string `yaml:"KEY_FILES"`

	NestedMeasurements   bool `yaml:"NESTED_MEASUREMENTS"`
	LegacyOptionPacking  bool `yaml:"LEGACY_OPTION_PACKING"`
	AllowMissingBootData bool `yaml:"ALLOW_MISSING_BOOT_DATA"`

	BootSeed               string `yaml:"BOOT_SEED"`
	ImplementationID       string `yaml:"IMPLEMENTATION_ID"`
	HardwareVersion        string `yaml:"HW_VERSION"`
	SecurityLifecycle      string `yaml:"SECURITY_LIFECYCLE"`
	VerificationServiceURL string `yaml:"VERIFICATION_SERVICE_URL"`
	Profile                string `yaml:"PROFILE"`
}

// AttestConfig returns the core token builder configuration.
func (s *Settings) AttestConfig() attest.Config {
	return attest.Config{
		Nested:               s.NestedMeasurements,
		LegacyOptionPacking:  s.LegacyOptionPacking,
		AllowMissingBootData: s.AllowMissingBootData,
	}
}

// KeyPaths maps key slots to the key files configured for them.
func (s *Settings) KeyPaths() (map[uint8]string, error) {
	paths := map[uint8]string{}
	if strings.TrimSpace(s.KeyFiles) == "" {
		return paths, nil
	}
	files := strings.Split(s.KeyFiles, ",")
	if len(files) > platform.MaxKeySlots {
		return nil, fmt.Errorf("%d key files configured, at most %d slots", len(files), platform.MaxKeySlots)
	}
	for slot, file := range files {
		if file = strings.TrimSpace(file); file != "" {
			paths[uint8(slot)] = file
		}
	}
	return paths, nil
}

// StaticProvider returns the platform claims configured in these settings.
func (s *Settings) StaticProvider() (*platform.StaticProvider, error) {
	seed, err := decodeHex("BOOT_SEED", s.BootSeed)
	if err != nil {
		return nil, err
	}
	implID, err := decodeHex("IMPLEMENTATION_ID", s.ImplementationID)
	if err != nil {
		return nil, err
	}
	lifecycle := iat.LifecycleUnknown
	if s.SecurityLifecycle != "" {
		lifecycle, err = iat.ParseLifecycle(s.SecurityLifecycle)
		if err != nil {
			return nil, err
		}
	}
	return &platform.StaticProvider{
		Seed:                seed,
		Implementation:      implID,
		HWVersion:           s.HardwareVersion,
		Lifecycle:           lifecycle,
		VerificationService: s.VerificationServiceURL,
		Profile:             s.Profile,
	}, nil
}

// Provider returns the claim provider selected by PLATFORM.
func (s *Settings) Provider() (platform.ClaimProvider, error) {
	static, err := s.StaticProvider()
	if err != nil {
		return nil, err
	}
	switch s.Platform {
	case "", PlatformStatic:
		return static, nil
	case PlatformNitro:
		return platform.NewNitroProvider(static), nil
	}
	return nil, fmt.Errorf("unknown platform %q", s.Platform)
}

func decodeHex(name, value string) ([]byte, error) {
	if value == "" {
		return nil, nil
	}
	b, err := hex.DecodeString(strings.TrimPrefix(value, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", name, err)
	}
	return b, nil
}
