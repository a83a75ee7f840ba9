// main.go: phylax command line tool.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

// Package main provides the phylax CLI for operating on envelopes, data
// keys and field records with the master key from the environment.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel"

	crypto "github.com/agilira/phylax"
	"github.com/agilira/phylax/cmd/phylax/commands"
)

func main() {
	cfg := crypto.LoadConfig()
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))

	cmd := newApp(cfg, logger, commands.DefaultIO())
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		logger.Error("command failed",
			slog.String("kind", crypto.KindOf(err).String()),
			slog.Any("error", err))
		os.Exit(1)
	}
}

// newService builds the instrumented service from cfg. It is only called by
// commands that need the master key.
func newService(cfg *crypto.Config, logger *slog.Logger) (crypto.Encryptor, error) {
	svc, err := crypto.NewServiceFromConfig(cfg, crypto.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	logger.Debug("service initialized", slog.Any("config", cfg))
	return crypto.NewInstrumentedService(svc, otel.GetMeterProvider(), cfg.MetricsNamespace)
}

func keyFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "key",
			Aliases: []string{"k"},
			Usage:   "Data key as 64 hex characters",
		},
		&cli.StringFlag{
			Name:  "key-id",
			Usage: "Data key id (random when empty)",
		},
	}
}

func aadFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "aad",
		Usage: "Additional authenticated data bound to the ciphertext",
	}
}

func withFlags(flags ...[]cli.Flag) []cli.Flag {
	var out []cli.Flag
	for _, f := range flags {
		out = append(out, f...)
	}
	return out
}

func newApp(cfg *crypto.Config, logger *slog.Logger, stdio commands.IOTuple) *cli.Command {
	// serviceAction adapts a command that needs the service.
	serviceAction := func(run func(ctx context.Context, cmd *cli.Command, svc crypto.Encryptor) error) cli.ActionFunc {
		return func(ctx context.Context, cmd *cli.Command) error {
			svc, err := newService(cfg, logger)
			if err != nil {
				return err
			}
			return run(ctx, cmd, svc)
		}
	}

	return &cli.Command{
		Name:    "phylax",
		Usage:   "Envelope encryption for protected health information",
		Version: "1.0.0",
		Writer:  stdio.Writer,
		Commands: []*cli.Command{
			{
				Name:  "generate-master-key",
				Usage: "Generate a new master key for PHYLAX_MASTER_KEY",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunGenerateMasterKey(logger, stdio.Writer)
				},
			},
			{
				Name:  "generate-key",
				Usage: "Generate a data key and wrap it under the master key",
				Action: serviceAction(func(ctx context.Context, cmd *cli.Command, svc crypto.Encryptor) error {
					return commands.RunGenerateKey(svc, logger, stdio.Writer)
				}),
			},
			{
				Name:  "wrap-key",
				Usage: "Wrap a data key under the master key",
				Flags: keyFlags(),
				Action: serviceAction(func(ctx context.Context, cmd *cli.Command, svc crypto.Encryptor) error {
					return commands.RunWrapKey(svc, stdio.Writer, cmd.String("key"), cmd.String("key-id"))
				}),
			},
			{
				Name:  "unwrap-key",
				Usage: "Unwrap a data key with the master key",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "wrapped",
						Aliases:  []string{"w"},
						Required: true,
						Usage:    "Wrapped key JSON",
					},
				},
				Action: serviceAction(func(ctx context.Context, cmd *cli.Command, svc crypto.Encryptor) error {
					return commands.RunUnwrapKey(svc, stdio.Writer, cmd.String("wrapped"))
				}),
			},
			{
				Name:  "encrypt",
				Usage: "Encrypt a string into an envelope",
				Flags: withFlags(keyFlags(), []cli.Flag{
					&cli.StringFlag{
						Name:     "plaintext",
						Aliases:  []string{"p"},
						Required: true,
						Usage:    "Text to encrypt",
					},
					aadFlag(),
				}),
				Action: serviceAction(func(ctx context.Context, cmd *cli.Command, svc crypto.Encryptor) error {
					return commands.RunEncrypt(svc, logger, stdio.Writer,
						cmd.String("plaintext"), cmd.String("key"), cmd.String("key-id"), cmd.String("aad"))
				}),
			},
			{
				Name:  "decrypt",
				Usage: "Decrypt an envelope",
				Flags: withFlags(keyFlags(), []cli.Flag{
					&cli.StringFlag{
						Name:     "envelope",
						Aliases:  []string{"e"},
						Required: true,
						Usage:    "Envelope JSON",
					},
					aadFlag(),
				}),
				Action: serviceAction(func(ctx context.Context, cmd *cli.Command, svc crypto.Encryptor) error {
					return commands.RunDecrypt(svc, stdio.Writer,
						cmd.String("envelope"), cmd.String("key"), cmd.String("key-id"), cmd.String("aad"))
				}),
			},
			{
				Name:  "encrypt-field",
				Usage: "Encrypt a field value bound to a field name and record id",
				Flags: withFlags(keyFlags(), []cli.Flag{
					&cli.StringFlag{Name: "value", Required: true, Usage: "Field value"},
					&cli.StringFlag{Name: "field", Required: true, Usage: "Field name, e.g. ssn"},
					&cli.StringFlag{Name: "record", Required: true, Usage: "Record id"},
				}),
				Action: serviceAction(func(ctx context.Context, cmd *cli.Command, svc crypto.Encryptor) error {
					return commands.RunEncryptField(svc, stdio.Writer, cmd.String("value"), cmd.String("field"),
						cmd.String("record"), cmd.String("key"), cmd.String("key-id"))
				}),
			},
			{
				Name:  "decrypt-field",
				Usage: "Decrypt a field record",
				Flags: withFlags(keyFlags(), []cli.Flag{
					&cli.StringFlag{Name: "encrypted", Required: true, Usage: "Field record JSON"},
					&cli.StringFlag{Name: "field", Required: true, Usage: "Field name"},
					&cli.StringFlag{Name: "record", Required: true, Usage: "Record id"},
				}),
				Action: serviceAction(func(ctx context.Context, cmd *cli.Command, svc crypto.Encryptor) error {
					return commands.RunDecryptField(svc, stdio.Writer, cmd.String("encrypted"), cmd.String("field"),
						cmd.String("record"), cmd.String("key"), cmd.String("key-id"))
				}),
			},
			{
				Name:  "rotate",
				Usage: "Re-encrypt an envelope under a new data key",
				Flags: withFlags(keyFlags(), []cli.Flag{
					&cli.StringFlag{
						Name:     "envelope",
						Aliases:  []string{"e"},
						Required: true,
						Usage:    "Envelope JSON",
					},
					aadFlag(),
				}),
				Action: serviceAction(func(ctx context.Context, cmd *cli.Command, svc crypto.Encryptor) error {
					return commands.RunRotate(svc, logger, stdio.Writer,
						cmd.String("envelope"), cmd.String("key"), cmd.String("key-id"), cmd.String("aad"))
				}),
			},
			{
				Name:  "hash",
				Usage: "SHA-256 digest of a string",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "data", Aliases: []string{"d"}, Required: true, Usage: "Input"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunHash(stdio.Writer, cmd.String("data"))
				},
			},
			{
				Name:  "hmac",
				Usage: "HMAC-SHA256 of a string",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "data", Aliases: []string{"d"}, Required: true, Usage: "Input"},
					&cli.StringFlag{Name: "hmac-key", Required: true, Usage: "HMAC key as hex"},
					&cli.StringFlag{Name: "verify", Usage: "Expected HMAC to verify"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunHMAC(stdio.Writer, cmd.String("data"), cmd.String("hmac-key"), cmd.String("verify"))
				},
			},
			{
				Name:  "derive-key",
				Usage: "Derive a key from a password with the configured KDF",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "password", Required: true, Usage: "Password"},
					&cli.StringFlag{Name: "salt", Usage: "Salt as hex (random when empty)"},
				},
				Action: serviceAction(func(ctx context.Context, cmd *cli.Command, svc crypto.Encryptor) error {
					return commands.RunDeriveKey(ctx, svc, stdio.Writer,
						cmd.String("password"), cmd.String("salt"), cfg.KDFParams().Algorithm)
				}),
			},
			{
				Name:  "encrypt-file",
				Usage: "Encrypt a file into an envelope JSON file",
				Flags: withFlags(keyFlags(), []cli.Flag{
					&cli.StringFlag{Name: "in", Aliases: []string{"i"}, Required: true, Usage: "Input file"},
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Required: true, Usage: "Output file"},
				}),
				Action: serviceAction(func(ctx context.Context, cmd *cli.Command, svc crypto.Encryptor) error {
					return commands.RunEncryptFile(svc, logger, stdio.Writer,
						cmd.String("in"), cmd.String("out"), cmd.String("key"), cmd.String("key-id"))
				}),
			},
			{
				Name:  "decrypt-file",
				Usage: "Decrypt an envelope JSON file",
				Flags: withFlags(keyFlags(), []cli.Flag{
					&cli.StringFlag{Name: "in", Aliases: []string{"i"}, Required: true, Usage: "Envelope file"},
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Required: true, Usage: "Output file"},
				}),
				Action: serviceAction(func(ctx context.Context, cmd *cli.Command, svc crypto.Encryptor) error {
					return commands.RunDecryptFile(svc, logger, stdio.Writer,
						cmd.String("in"), cmd.String("out"), cmd.String("key"), cmd.String("key-id"))
				}),
			},
		},
	}
}
