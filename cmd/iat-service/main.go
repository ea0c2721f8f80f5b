package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/DIMO-Network/initial-attestation/internal/config"
	"github.com/DIMO-Network/initial-attestation/pkg/attest"
	"github.com/DIMO-Network/initial-attestation/pkg/bootdata"
	"github.com/DIMO-Network/initial-attestation/pkg/platform"
	"github.com/DIMO-Network/initial-attestation/pkg/server"
	"github.com/DIMO-Network/shared"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

func main() {
	logger := server.DefaultLogger("iat-service")

	settingsFile := flag.String("settings", "settings.yaml", "settings file")
	flag.Parse()
	settings, err := shared.LoadConfig[config.Settings](*settingsFile)
	if err != nil {
		logger.Fatal().Err(err).Msg("Couldn't load settings.")
	}
	server.SetLevel(logger, settings.LogLevel)

	service, err := newService(&settings, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Couldn't create attestation service.")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Load boot data before serving.
	if err := service.Init(logger.WithContext(ctx)); err != nil {
		logger.Fatal().Err(err).Msg("Couldn't initialize attestation.")
	}

	group, groupCtx := errgroup.WithContext(ctx)

	monApp := server.CreateMonitoringServer()
	logger.Info().Str("port", strconv.Itoa(settings.MonPort)).Msgf("Starting monitoring server")
	server.RunFiber(groupCtx, monApp, ":"+strconv.Itoa(settings.MonPort), group)

	webApp := server.CreateWebServer(logger, service, settings.ClientID)
	if settings.VsockPort != 0 {
		logger.Info().Uint32("port", settings.VsockPort).Msgf("Starting attestation server on vsock")
		if err := server.RunFiberVsock(groupCtx, webApp, settings.VsockPort, group); err != nil {
			logger.Fatal().Err(err).Msg("Couldn't listen on vsock.")
		}
	} else {
		logger.Info().Str("port", strconv.Itoa(settings.Port)).Msgf("Starting attestation server")
		server.RunFiber(groupCtx, webApp, ":"+strconv.Itoa(settings.Port), group)
	}

	err = group.Wait()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to run servers.")
	}
}

func newService(settings *config.Settings, logger *zerolog.Logger) (*attest.Service, error) {
	provider, err := settings.Provider()
	if err != nil {
		return nil, err
	}
	keyPaths, err := settings.KeyPaths()
	if err != nil {
		return nil, err
	}
	keys, err := platform.LoadKeys(keyPaths)
	if err != nil {
		return nil, err
	}
	var source bootdata.Source
	if settings.BootDataFile != "" {
		source = bootdata.FileSource{Path: settings.BootDataFile}
	}
	attestCtx, err := attest.NewContext(settings.AttestConfig(), attest.Collaborators{
		Source:   source,
		Provider: provider,
		Keys:     keys,
	})
	if err != nil {
		return nil, err
	}
	logger.Info().
		Str("platform", settings.Platform).
		Int("keys", len(keys)).
		Bool("nested", settings.NestedMeasurements).
		Msg("Attestation service configured.")
	return attest.NewService(attestCtx, *logger), nil
}
