package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	"rachis/internal/config"
	"rachis/internal/ctxlog"
	"rachis/internal/storage"
	"rachis/pkg/rachis"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "archs":
		return runArchs(ctx, args[1:])
	case "describe":
		return runDescribe(ctx, args[1:])
	case "build":
		return runBuild(ctx, args[1:])
	case "forward":
		return runForward(ctx, args[1:])
	case "builds":
		return runBuilds(ctx, args[1:])
	case "snapshots":
		return runSnapshots(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func runArchs(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("archs", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "emit architecture list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := rachis.New(rachis.Options{StoreKind: "memory"})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	archs := client.Archs()
	if *jsonOut {
		return json.NewEncoder(os.Stdout).Encode(archs)
	}
	for _, name := range archs {
		fmt.Println(name)
	}
	return nil
}

func runDescribe(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("describe", flag.ContinueOnError)
	configPath := fs.String("config", "", "backbone configuration YAML (defaults when empty)")
	arch := fs.String("arch", "", "override the configured architecture")
	jsonOut := fs.Bool("json", false, "emit the summary as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *arch != "" {
		cfg.ConvBody = *arch
	}

	client, err := rachis.New(rachis.Options{StoreKind: "memory"})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Describe(cfg)
	if err != nil {
		return err
	}
	if *jsonOut {
		return json.NewEncoder(os.Stdout).Encode(summary)
	}
	fmt.Printf("architecture=%s out_channels=%d param_tensors=%d\n",
		summary.Architecture, summary.OutChannels, summary.ParamCount)
	for _, s := range summary.Stages {
		fmt.Printf("  %s blocks=%d stride=%d dilation=%d out_channels=%d exported=%t frozen=%t\n",
			s.Name, s.Blocks, s.FirstStride, s.Dilation, s.OutChannels, s.Exported, s.Frozen)
	}
	return nil
}

func runBuild(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	configPath := fs.String("config", "", "backbone configuration YAML (defaults when empty)")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "rachis.db", "sqlite database path")
	snapshot := fs.Bool("snapshot", false, "save an initial weight snapshot")
	jsonOut := fs.Bool("json", false, "emit the build summary as JSON")
	logLevel := fs.String("log-level", "info", "log level: debug|info|warn|error")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx = ctxlog.WithLogger(ctx, ctxlog.NewLogger(os.Stderr, *logLevel, "text"))

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	client, err := rachis.New(rachis.Options{StoreKind: *storeKind, DBPath: *dbPath})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}

	summary, err := client.Build(ctx, cfg)
	if err != nil {
		return err
	}

	var snapshotID string
	if *snapshot {
		saved, err := client.SaveSnapshot(ctx, summary.BuildID)
		if err != nil {
			return err
		}
		snapshotID = saved.SnapshotID
	}

	if *jsonOut {
		out := struct {
			rachis.BuildSummary
			SnapshotID string `json:"snapshot_id,omitempty"`
		}{BuildSummary: summary, SnapshotID: snapshotID}
		return json.NewEncoder(os.Stdout).Encode(out)
	}
	fmt.Printf("build=%s architecture=%s out_channels=%d param_tensors=%d\n",
		summary.BuildID, summary.Architecture, summary.OutChannels, summary.ParamCount)
	if snapshotID != "" {
		fmt.Printf("snapshot=%s\n", snapshotID)
	}
	return nil
}

func runForward(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("forward", flag.ContinueOnError)
	configPath := fs.String("config", "", "backbone configuration YAML (defaults when empty)")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "rachis.db", "sqlite database path")
	restore := fs.String("restore", "", "snapshot id to restore before the pass")
	batch := fs.Int("batch", 1, "input batch size")
	channels := fs.Int("channels", 3, "input channel count")
	height := fs.Int("height", 224, "input height")
	width := fs.Int("width", 224, "input width")
	jsonOut := fs.Bool("json", false, "emit feature shapes as JSON")
	logLevel := fs.String("log-level", "info", "log level: debug|info|warn|error")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *batch <= 0 || *channels <= 0 || *height <= 0 || *width <= 0 {
		return errors.New("batch, channels, height, and width must be > 0")
	}

	ctx = ctxlog.WithLogger(ctx, ctxlog.NewLogger(os.Stderr, *logLevel, "text"))

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	client, err := rachis.New(rachis.Options{StoreKind: *storeKind, DBPath: *dbPath})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}

	summary, err := client.Build(ctx, cfg)
	if err != nil {
		return err
	}
	if *restore != "" {
		if err := client.RestoreSnapshot(ctx, summary.BuildID, *restore); err != nil {
			return err
		}
	}

	forward, err := client.Forward(ctx, rachis.ForwardRequest{
		BuildID:  summary.BuildID,
		Batch:    *batch,
		Channels: *channels,
		Height:   *height,
		Width:    *width,
	})
	if err != nil {
		return err
	}

	if *jsonOut {
		return json.NewEncoder(os.Stdout).Encode(forward)
	}
	for i, shape := range forward.FeatureShapes {
		fmt.Printf("feature[%d] shape=%v\n", i, shape)
	}
	return nil
}

func runBuilds(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("builds", flag.ContinueOnError)
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "rachis.db", "sqlite database path")
	jsonOut := fs.Bool("json", false, "emit build records as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := rachis.New(rachis.Options{StoreKind: *storeKind, DBPath: *dbPath})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}

	records, err := client.Builds(ctx)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("no builds found")
		return nil
	}
	if *jsonOut {
		return json.NewEncoder(os.Stdout).Encode(records)
	}
	for _, r := range records {
		fmt.Printf("%s architecture=%s out_channels=%d created=%s\n",
			r.ID, r.Architecture, r.OutChannels, r.CreatedAtUTC)
	}
	return nil
}

func runSnapshots(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("snapshots", flag.ContinueOnError)
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "rachis.db", "sqlite database path")
	deleteID := fs.String("delete", "", "delete the snapshot with this id")
	jsonOut := fs.Bool("json", false, "emit snapshot list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := rachis.New(rachis.Options{StoreKind: *storeKind, DBPath: *dbPath})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}

	if *deleteID != "" {
		if err := client.DeleteSnapshot(ctx, *deleteID); err != nil {
			return err
		}
		fmt.Printf("deleted snapshot=%s\n", *deleteID)
		return nil
	}

	infos, err := client.Snapshots(ctx)
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		fmt.Println("no snapshots found")
		return nil
	}
	if *jsonOut {
		return json.NewEncoder(os.Stdout).Encode(infos)
	}
	for _, info := range infos {
		fmt.Printf("%s architecture=%s tensors=%d created=%s\n",
			info.ID, info.Architecture, info.TensorCount, info.CreatedAtUTC)
	}
	return nil
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: rachisctl <archs|describe|build|forward|builds|snapshots> [flags]", msg)
}
