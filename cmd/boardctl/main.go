// Command boardctl drives a tenant's pipeline board against a running
// server over its HTTP API.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alanyang/lead-pipeline/internal/adapter/httpapi"
	"github.com/alanyang/lead-pipeline/internal/config"
	"github.com/alanyang/lead-pipeline/internal/domain/gate"
	"github.com/alanyang/lead-pipeline/internal/domain/lead"
	"github.com/alanyang/lead-pipeline/internal/domain/pipeline"
	"github.com/alanyang/lead-pipeline/internal/domain/stage"
	"github.com/alanyang/lead-pipeline/internal/service/board"
)

const usage = `usage: boardctl <command> [flags] [args]

commands:
  board                                  print the board
  move [-form JSON] <lead-id> <stage>    drop a lead onto a stage by name
  create-stage -name N [-form-type T] [-color C]
  delete-stages <stage-id>...
`

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		var blocked *pipeline.BlockedError
		if errors.As(err, &blocked) || httpapi.IsReject(err) {
			os.Exit(3)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd string, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.Client.Token == "" {
		return errors.New("LEAD_PIPELINE_TOKEN not set")
	}
	b := board.New(httpapi.New(httpapi.Config{
		BaseURL:   cfg.Client.BaseURL,
		Token:     cfg.Client.Token,
		Timeout:   cfg.Client.Timeout,
		RateLimit: cfg.Client.RateLimit,
		RateBurst: cfg.Client.RateBurst,
		Shape:     cfg.Client.Shape,
	}))
	if err := b.Refresh(ctx); err != nil {
		return err
	}

	switch cmd {
	case "board":
		return printJSON(b.Snapshot())
	case "move":
		return move(ctx, b, args)
	case "create-stage":
		return createStage(ctx, b, args)
	case "delete-stages":
		ids := make([]stage.ID, 0, len(args))
		for _, a := range args {
			ids = append(ids, stage.ID(a))
		}
		if err := b.DeleteStages(ctx, ids); err != nil {
			return err
		}
		return printJSON(map[string]any{"deleted": ids})
	}
	return fmt.Errorf("unknown command %q\n%s", cmd, usage)
}

func move(ctx context.Context, b *board.Board, args []string) error {
	fs := flag.NewFlagSet("move", flag.ContinueOnError)
	form := fs.String("form", "", "gating form payload as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return errors.New("move takes <lead-id> <stage-name>")
	}

	d, err := b.Drop(ctx, lead.ID(fs.Arg(0)), fs.Arg(1))
	if err != nil {
		return err
	}
	if d.Kind != pipeline.Deferred {
		return printJSON(d)
	}

	p, _ := b.Pending()
	if *form == "" {
		b.CancelGate()
		return fmt.Errorf("stage %q needs a %s form; pass it with -form", fs.Arg(1), p.RequiredFormType)
	}
	payload, err := gate.DecodePayload(p.RequiredFormType, json.RawMessage(*form))
	if err != nil {
		b.CancelGate()
		return err
	}
	if err := b.SubmitGate(ctx, payload); err != nil {
		b.CancelGate()
		return err
	}
	_, bucket, _ := b.Grouping().Find(p.Lead.ID)
	return printJSON(map[string]any{"decision": d, "landedIn": bucket.Name})
}

func createStage(ctx context.Context, b *board.Board, args []string) error {
	fs := flag.NewFlagSet("create-stage", flag.ContinueOnError)
	name := fs.String("name", "", "stage name")
	formType := fs.String("form-type", "", "form type for a gated stage")
	color := fs.String("color", "", "display color")
	if err := fs.Parse(args); err != nil {
		return err
	}
	ft := stage.ParseFormType(*formType)
	created, err := b.CreateStage(ctx, pipeline.CreateStageRequest{
		Name:     *name,
		Color:    *color,
		Gated:    ft.Gated(),
		FormType: ft,
	})
	if err != nil {
		return err
	}
	return printJSON(created)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
