package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hoenirvili/CFGTrace/internal/config"
	"github.com/hoenirvili/CFGTrace/internal/dotrender"
	"github.com/hoenirvili/CFGTrace/internal/instr"
	"github.com/hoenirvili/CFGTrace/internal/log"
	"github.com/hoenirvili/CFGTrace/internal/session"
	"github.com/hoenirvili/CFGTrace/internal/sharedmem"
	"github.com/hoenirvili/CFGTrace/internal/traceingest"
)

// traceEvent is one line of a JSONL trace file: a host callback with its
// argument. Event is one of "begin", "instruction", "branch", "end".
type traceEvent struct {
	Event     string `json:"event"`
	Iteration uint64 `json:"iteration"`
	Address   uint64 `json:"address"`
	Text      string `json:"text"`
	Kind      string `json:"kind"`
	Length    uint32 `json:"length"`
	Target    uint64 `json:"target"`
	APITag    string `json:"api_tag"`
}

func newReplayCmd() *cobra.Command {
	var (
		configPath string
		jsonlPath  string
		binPath    string
		baseAddr   uint64
		windowPath string
		imageFmt   string
	)

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Feed a recorded trace through the CFG core and render it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger := log.New(log.ParseLevel(cfg.LogLevel), os.Stderr, cfg.JSONLog)

			events, err := loadEvents(jsonlPath, binPath, baseAddr)
			if err != nil {
				return err
			}

			var window *sharedmem.Window
			if windowPath != "" {
				window, err = openOrCreateWindow(windowPath, cfg.WindowCapacity)
				if err != nil {
					return err
				}
			}

			var renderer *dotrender.Renderer
			if imageFmt != "" {
				renderer = dotrender.New(cfg.RendererPath, cfg.OutputDir)
			}

			s := session.New(window, renderer, logger)
			result, err := replay(cmd.Context(), s, events, imageFmt)
			if err != nil {
				return err
			}

			docPath := filepath.Join(cfg.OutputDir, "cfg.dot")
			if err := os.WriteFile(docPath, []byte(result.Document), 0644); err != nil {
				return fmt.Errorf("write %s: %w", docPath, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", docPath)
			if result.ImagePath != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", result.ImagePath)
			}
			if result.RenderErr != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "renderer: %v\n", result.RenderErr)
			}
			if result.MergeErr != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "merge: %v\n", result.MergeErr)
			}

			if windowPath != "" {
				return persistWindow(windowPath, window)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "cfgtrace.yaml", "path to config YAML")
	cmd.Flags().StringVar(&jsonlPath, "trace", "", "JSONL trace file of host callback events")
	cmd.Flags().StringVar(&binPath, "bin", "", "raw ARM64 .bin file, decoded as a single straight-line iteration")
	cmd.Flags().Uint64Var(&baseAddr, "base", 0, "base address for --bin decoding")
	cmd.Flags().StringVar(&windowPath, "window", "", "shared-memory window file to merge through (created if absent)")
	cmd.Flags().StringVar(&imageFmt, "format", "", "image format to render (e.g. png, svg); empty skips image rendering")

	return cmd
}

func loadEvents(jsonlPath, binPath string, baseAddr uint64) ([]traceEvent, error) {
	switch {
	case jsonlPath != "":
		return loadJSONLEvents(jsonlPath)
	case binPath != "":
		return loadBinEvents(binPath, baseAddr)
	default:
		return nil, fmt.Errorf("replay: one of --trace or --bin is required")
	}
}

func loadJSONLEvents(path string) ([]traceEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("replay: open %s: %w", path, err)
	}
	defer f.Close()

	var events []traceEvent
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev traceEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			return nil, fmt.Errorf("replay: parse %s: %w", path, err)
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("replay: read %s: %w", path, err)
	}
	return events, nil
}

// loadBinEvents decodes a raw ARM64 .bin file as a single iteration: begin,
// then one instruction/branch event per decoded instruction, then end.
func loadBinEvents(path string, baseAddr uint64) ([]traceEvent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("replay: read %s: %w", path, err)
	}
	insts, err := traceingest.DecodeAll(data, baseAddr)
	if err != nil {
		return nil, err
	}

	events := []traceEvent{{Event: "begin", Iteration: 1}}
	for _, in := range insts {
		ev := traceEvent{
			Iteration: 1,
			Address:   in.Address,
			Text:      in.Text,
			Kind:      in.Kind.String(),
			Length:    in.Length,
			Target:    in.Target,
			APITag:    in.APITag,
		}
		if in.IsBranch() {
			ev.Event = "branch"
		} else {
			ev.Event = "instruction"
		}
		events = append(events, ev)
	}
	events = append(events, traceEvent{Event: "end", Iteration: 1})
	return events, nil
}

func replay(ctx context.Context, s *session.Session, events []traceEvent, imageFmt string) (session.Result, error) {
	var last session.Result
	for _, ev := range events {
		switch ev.Event {
		case "begin":
			s.BeginIteration(ev.Iteration)
		case "instruction", "branch":
			kind, err := instr.ParseKind(ev.Kind)
			if err != nil {
				return session.Result{}, err
			}
			in := instr.Instruction{
				Address: ev.Address,
				Text:    ev.Text,
				Kind:    kind,
				Length:  ev.Length,
				Target:  ev.Target,
				APITag:  ev.APITag,
			}
			if ev.Event == "branch" {
				err = s.OnBranch(in)
			} else {
				err = s.OnInstruction(in)
			}
			if err != nil {
				return session.Result{}, err
			}
		case "end":
			result, err := s.EndIteration(ctx, imageFmt)
			if err != nil {
				return session.Result{}, err
			}
			last = result
		default:
			return session.Result{}, fmt.Errorf("replay: unrecognized event %q", ev.Event)
		}
	}
	return last, nil
}

func openOrCreateWindow(path string, capacity uint64) (*sharedmem.Window, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		return sharedmem.Open(data)
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("replay: read window %s: %w", path, err)
	}

	region := make([]byte, capacity+4096)
	return sharedmem.NewHeader(region, capacity, "")
}

func persistWindow(path string, window *sharedmem.Window) error {
	return os.WriteFile(path, window.Region(), 0644)
}
