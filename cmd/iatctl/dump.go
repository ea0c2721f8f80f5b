package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/DIMO-Network/initial-attestation/pkg/bootdata"
	"github.com/spf13/pflag"
)

func runDump(args []string, stdout io.Writer) error {
	var regionPath string
	flagSet := pflag.NewFlagSet("dump", pflag.ContinueOnError)
	flagSet.StringVarP(&regionPath, "file", "f", "", "boot data region file")
	if ok, err := parse(flagSet, args); !ok {
		return err
	}
	if regionPath == "" {
		return fmt.Errorf("--file is required")
	}
	region, err := os.ReadFile(regionPath)
	if err != nil {
		return fmt.Errorf("failed to read region: %w", err)
	}
	return dumpRegion(region, stdout)
}

func dumpRegion(region []byte, w io.Writer) error {
	data, err := bootdata.Load(region)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "total length %d\n", data.TotalLen())
	return data.Walk(func(rec bootdata.Record) error {
		_, err := fmt.Fprintf(w, "%#04x %s %s\n", rec.Offset, rec, hex.EncodeToString(rec.Payload))
		return err
	})
}
