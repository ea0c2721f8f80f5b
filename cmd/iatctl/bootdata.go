package main

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/DIMO-Network/initial-attestation/pkg/bootdata"
	"github.com/DIMO-Network/initial-attestation/pkg/iat"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// layout describes the boot data a bootloader would leave behind.
type layout struct {
	General    generalLayout     `yaml:"general"`
	Components []componentLayout `yaml:"components"`
	// Sentinel ends the region with a zero length record.
	Sentinel bool `yaml:"sentinel"`
}

type generalLayout struct {
	BootSeed        string `yaml:"boot_seed"`
	HardwareVersion string `yaml:"hw_version"`
	Lifecycle       string `yaml:"lifecycle"`
}

// componentLayout lists the claims of one software module in record order.
type componentLayout struct {
	Module           uint8   `yaml:"module"`
	MeasurementType  string  `yaml:"measurement_type"`
	MeasurementValue string  `yaml:"measurement_value"`
	Version          string  `yaml:"version"`
	SignerID         string  `yaml:"signer_id"`
	Epoch            *uint64 `yaml:"epoch"`
	Type             string  `yaml:"type"`
	MeasurementDesc  string  `yaml:"measurement_desc"`
	BootRecord       string  `yaml:"boot_record"`
}

func runBootData(args []string, stdout io.Writer) error {
	var layoutPath, outPath string
	flagSet := pflag.NewFlagSet("bootdata", pflag.ContinueOnError)
	flagSet.StringVarP(&layoutPath, "layout", "l", "", "YAML layout file")
	flagSet.StringVarP(&outPath, "out", "o", "", "region output file (default: stdout)")
	if ok, err := parse(flagSet, args); !ok {
		return err
	}
	if layoutPath == "" {
		return fmt.Errorf("--layout is required")
	}
	data, err := os.ReadFile(layoutPath)
	if err != nil {
		return fmt.Errorf("failed to read layout: %w", err)
	}
	region, err := buildRegion(data)
	if err != nil {
		return err
	}
	if outPath == "" {
		_, err = stdout.Write(region)
		return err
	}
	return os.WriteFile(outPath, region, 0o600)
}

// buildRegion encodes a YAML layout as a boot data region.
func buildRegion(data []byte) ([]byte, error) {
	var l layout
	if err := yaml.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("failed to parse layout: %w", err)
	}
	b := bootdata.NewBuilder()
	if err := addGeneral(b, l.General); err != nil {
		return nil, err
	}
	for i, c := range l.Components {
		if c.Module == bootdata.ModuleGeneral || c.Module > bootdata.MaxModule {
			return nil, fmt.Errorf("component %d: module %d out of range", i, c.Module)
		}
		if err := addComponent(b, c); err != nil {
			return nil, fmt.Errorf("component %d: %w", i, err)
		}
	}
	if l.Sentinel {
		b.Sentinel()
	}
	return b.Bytes()
}

func addGeneral(b *bootdata.Builder, g generalLayout) error {
	if g.BootSeed != "" {
		seed, err := decodeHex(g.BootSeed)
		if err != nil {
			return fmt.Errorf("boot_seed: %w", err)
		}
		b.AddIAS(bootdata.ModuleGeneral, bootdata.ClaimBootSeed, seed)
	}
	if g.HardwareVersion != "" {
		b.AddText(bootdata.ModuleGeneral, bootdata.ClaimHardwareVersion, g.HardwareVersion)
	}
	if g.Lifecycle != "" {
		lifecycle, err := iat.ParseLifecycle(g.Lifecycle)
		if err != nil {
			return err
		}
		b.AddUint32(bootdata.ModuleGeneral, bootdata.ClaimSecurityLifecycle, uint32(lifecycle))
	}
	return nil
}

func addComponent(b *bootdata.Builder, c componentLayout) error {
	if c.BootRecord != "" {
		record, err := decodeHex(c.BootRecord)
		if err != nil {
			return fmt.Errorf("boot_record: %w", err)
		}
		b.AddIAS(c.Module, bootdata.ClaimBootRecord, record)
		return nil
	}
	if c.MeasurementValue != "" {
		value, err := decodeHex(c.MeasurementValue)
		if err != nil {
			return fmt.Errorf("measurement_value: %w", err)
		}
		b.AddIAS(c.Module, bootdata.ClaimMeasurementValue, value)
	}
	if c.MeasurementType != "" {
		b.AddText(c.Module, bootdata.ClaimMeasurementType, c.MeasurementType)
	}
	if c.MeasurementDesc != "" {
		b.AddText(c.Module, bootdata.ClaimMeasurementDesc, c.MeasurementDesc)
	}
	if c.Version != "" {
		b.AddText(c.Module, bootdata.ClaimVersion, c.Version)
	}
	if c.SignerID != "" {
		signer, err := decodeHex(c.SignerID)
		if err != nil {
			return fmt.Errorf("signer_id: %w", err)
		}
		b.AddIAS(c.Module, bootdata.ClaimSignerID, signer)
	}
	if c.Epoch != nil {
		b.AddIAS(c.Module, bootdata.ClaimEpoch, binary.LittleEndian.AppendUint64(nil, *c.Epoch))
	}
	if c.Type != "" {
		b.AddText(c.Module, bootdata.ClaimType, c.Type)
	}
	return nil
}

func decodeHex(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
}
