package attest

import (
	"context"
	"errors"
	"fmt"

	"github.com/DIMO-Network/initial-attestation/pkg/bootdata"
	"github.com/DIMO-Network/initial-attestation/pkg/iat"
	"github.com/fxamacker/cbor/v2"
	"github.com/rs/zerolog"
)

// addSoftwareComponents adds one component per software module found in the
// boot data, or the no-software-measurements marker when there is none.
func (c *Context) addSoftwareComponents(ctx context.Context, claims *claimMap) error {
	components, err := c.softwareComponents(ctx)
	if err != nil {
		return err
	}
	if len(components) == 0 {
		zerolog.Ctx(ctx).Debug().Msg("No software components in boot data.")
		return claims.add(iat.LabelNoSoftwareComponents, iat.NoSoftwareMeasurements)
	}
	return claims.addRaw(iat.LabelSoftwareComponents, encodeArray(components))
}

// softwareComponents encodes the component of every module in 1..MaxModule
// that has records, in module order.
func (c *Context) softwareComponents(ctx context.Context) ([][]byte, error) {
	if c.shared == nil {
		return nil, nil
	}
	var components [][]byte
	for module := bootdata.ModuleGeneral + 1; module <= bootdata.MaxModule; module++ {
		rec, ok, err := c.shared.FindFirst(module)
		if err != nil {
			return nil, fmt.Errorf("%w: software component %d: %w", ErrClaimUnavailable, module, err)
		}
		if !ok {
			continue
		}
		component, err := c.encodeComponent(ctx, rec)
		if err != nil {
			return nil, err
		}
		components = append(components, component)
	}
	return components, nil
}

// encodeComponent walks the records of one module, starting at first, in
// boot data order.
func (c *Context) encodeComponent(ctx context.Context, first bootdata.Record) ([]byte, error) {
	logger := zerolog.Ctx(ctx).With().Uint8("module", first.Module).Logger()
	component := newClaimMap()
	var measurement *claimMap
	var bootRecord []byte

	// inRun is set while the records read so far end in the contiguous run
	// of measurement claims the nested map was opened for.
	inRun := false
	rec, ok, err := first, true, error(nil)
	for ; ok; rec, ok, err = c.shared.FindNext(rec) {
		nested := c.cfg.Nested && bootdata.IsMeasurementClaim(rec.Claim) && (measurement == nil || inRun)
		inRun = nested
		var addErr error
		switch {
		case rec.Claim == bootdata.ClaimBootRecord:
			if err := validateBootRecord(rec.Payload); err != nil {
				return nil, err
			}
			bootRecord = rec.Payload
		case nested:
			if measurement == nil {
				if measurement, err = component.addMap(iat.ComponentMeasurement); err != nil {
					return nil, err
				}
			}
			addErr = addMeasurementClaim(measurement, rec, true)
		case bootdata.IsMeasurementClaim(rec.Claim):
			// Flat, and measurement claims after the nested run, stay in
			// record order on the component.
			addErr = addMeasurementClaim(component, rec, false)
		default:
			addErr = addComponentClaim(component, rec)
		}
		if addErr != nil {
			return nil, componentError(rec, addErr)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: software component %d: %w", ErrClaimUnavailable, first.Module, err)
	}
	if bootRecord != nil {
		if component.len() > 0 {
			logger.Debug().Int("claims", component.len()).Msg("Boot record replaces separate component claims.")
		}
		return bootRecord, nil
	}
	return component.appendTo(nil)
}

// componentError classifies a repeated record as malformed boot data.
func componentError(rec bootdata.Record, err error) error {
	if errors.Is(err, errDuplicateClaim) {
		return fmt.Errorf("%w: software component %d: repeated claim %#04x: %w", ErrClaimUnavailable, rec.Module, rec.Claim, errDuplicateClaim)
	}
	return err
}

func addComponentClaim(component *claimMap, rec bootdata.Record) error {
	switch rec.Claim {
	case bootdata.ClaimVersion:
		return component.add(iat.ComponentVersion, string(rec.Payload))
	case bootdata.ClaimSignerID:
		return component.add(iat.ComponentSignerID, rec.Payload)
	case bootdata.ClaimEpoch:
		epoch, err := bootdata.DecodeUint(rec.Payload)
		if err != nil {
			return fmt.Errorf("%w: software component %d epoch: %w", ErrClaimUnavailable, rec.Module, err)
		}
		return component.add(iat.ComponentEpoch, epoch)
	case bootdata.ClaimType:
		return component.add(iat.ComponentMeasurementType, string(rec.Payload))
	}
	// Claims without a token representation are carried by the bootloader
	// for other consumers.
	return nil
}

// addMeasurementClaim adds a measurement claim either to the nested
// measurement map or flat to the component. A flat component has a single
// description slot shared by the measurement type and description claims;
// the first one wins.
func addMeasurementClaim(m *claimMap, rec bootdata.Record, nested bool) error {
	switch rec.Claim {
	case bootdata.ClaimMeasurementValue:
		return m.add(iat.ComponentMeasurementValue, rec.Payload)
	case bootdata.ClaimMeasurementType:
		if nested {
			return m.add(iat.ComponentMeasurementType, string(rec.Payload))
		}
	case bootdata.ClaimMeasurementDesc:
	default:
		return nil
	}
	if !nested && m.has(iat.ComponentMeasurementDesc) {
		return nil
	}
	return m.add(iat.ComponentMeasurementDesc, string(rec.Payload))
}

// validateBootRecord checks a bootloader supplied component is a single well
// formed CBOR map.
func validateBootRecord(payload []byte) error {
	if len(payload) == 0 || payload[0]>>5 != cborMajorMap {
		return fmt.Errorf("%w: boot record is not a CBOR map", ErrClaimUnavailable)
	}
	if err := cbor.Wellformed(payload); err != nil {
		return fmt.Errorf("%w: boot record: %w", ErrClaimUnavailable, err)
	}
	return nil
}
