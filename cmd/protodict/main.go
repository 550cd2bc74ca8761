// Command protodict converts binary protobuf messages to and from mappings
// serialized as JSON, YAML or MessagePack.
//
// Usage:
//
//	protodict encode -type scan.v1.Target -descriptors schema.binpb target.bin
//	protodict decode -type scan.v1.Target -descriptors schema.binpb target.json > target.bin
//
// Settings are read from protodict.yaml (searched from the current directory
// upwards, or given with -config). Flags override file values.
package main

import (
	"context"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/zero-day-ai/protodict"
	"github.com/zero-day-ai/protodict/batch"
	"github.com/zero-day-ai/protodict/config"
	"github.com/zero-day-ai/protodict/descriptors"
	"github.com/zero-day-ai/protodict/format"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"

	// Registers google.protobuf descriptor types for use without -descriptors.
	_ "google.golang.org/protobuf/types/descriptorpb"
)

const usageText = `Usage: protodict <command> [flags] [file]

Commands:
  encode    read a binary message and write its mapping
  decode    read a mapping and write the binary message

Input is read from file, or stdin when no file is given.
Run 'protodict <command> -h' for command flags.
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// command holds everything a subcommand needs once flags and config are merged.
type command struct {
	name     string
	cfg      *config.Config
	lines    bool
	input    string
	logger   *slog.Logger
	stdin    io.Reader
	stdout   io.Writer
	msgType  protoreflect.MessageType
	resolver protoregistry.ExtensionTypeResolver
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usageText)
		return 2
	}

	name, args := args[0], args[1:]
	switch name {
	case "encode", "decode":
	case "help", "-h", "-help", "--help":
		fmt.Fprint(stdout, usageText)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", name, usageText)
		return 2
	}

	cmd, err := parseCommand(name, args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "protodict %s: %v\n", name, err)
		return 2
	}
	cmd.stdin = stdin
	cmd.stdout = stdout

	if err := cmd.resolveType(); err != nil {
		cmd.logger.Error("failed to resolve message type", "type", cmd.cfg.MessageType, "error", err)
		return 1
	}

	switch name {
	case "encode":
		err = cmd.encode(ctx)
	case "decode":
		err = cmd.decode(ctx)
	}
	if err != nil {
		cmd.logger.Error(name+" failed", "type", cmd.cfg.MessageType, "error", err)
		return 1
	}
	return 0
}

// parseCommand parses flags, loads the config file and applies flag overrides.
func parseCommand(name string, args []string, stderr io.Writer) (*command, error) {
	fs := flag.NewFlagSet("protodict "+name, flag.ContinueOnError)
	fs.SetOutput(stderr)

	configPath := fs.String("config", "", "path to protodict.yaml (default: search from the current directory)")
	descriptorFiles := fs.String("descriptors", "", "comma-separated FileDescriptorSet files")
	messageType := fs.String("type", "", "fully-qualified message type, e.g. scan.v1.Target")
	formatName := fs.String("format", "", "mapping format: "+strings.Join(format.Names(), ", "))
	enumLabels := fs.Bool("enum-labels", false, "encode enums as their names")
	unknownEnums := fs.String("unknown-enums", "", "unknown enum numbers with -enum-labels: error or number")
	int64AsString := fs.Bool("int64-as-string", false, "encode 64-bit integers as decimal strings")
	jsonNames := fs.Bool("json-names", false, "use JSON field names as keys")
	strict := fs.Bool("strict", true, "reject unknown keys when decoding")
	workers := fs.Int("workers", 0, "records converted in parallel with -lines")
	logLevel := fs.String("log-level", "", "log level: debug, info, warn, error")
	logFormat := fs.String("log-format", "", "log format: text or json")
	lines := fs.Bool("lines", false, "newline-delimited records: base64 binary on one side, JSON on the other")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 1 {
		return nil, fmt.Errorf("expected at most one input file, got %d", fs.NArg())
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return nil, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "descriptors":
			cfg.Descriptors = splitList(*descriptorFiles)
		case "type":
			cfg.MessageType = *messageType
		case "format":
			cfg.Format = *formatName
		case "enum-labels":
			cfg.Encode.EnumLabels = *enumLabels
		case "unknown-enums":
			cfg.Encode.UnknownEnums = *unknownEnums
		case "int64-as-string":
			cfg.Encode.Int64AsString = *int64AsString
		case "json-names":
			cfg.Encode.JSONNames = *jsonNames
		case "strict":
			cfg.Decode.Strict = strict
		case "workers":
			cfg.Workers.Concurrency = *workers
		case "log-level":
			cfg.Log.Level = *logLevel
		case "log-format":
			cfg.Log.Format = *logFormat
		}
	})

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.MessageType == "" {
		return nil, errors.New("message type is required (-type or message_type)")
	}
	if *lines && cfg.Format != "json" {
		return nil, fmt.Errorf("-lines requires the json format, got %q", cfg.Format)
	}

	logger, err := newLogger(cfg, stderr)
	if err != nil {
		return nil, err
	}

	return &command{
		name:   name,
		cfg:    cfg,
		lines:  *lines,
		input:  fs.Arg(0),
		logger: logger.With("command", name),
	}, nil
}

// loadConfig loads an explicit config file, or searches for one from the
// current directory. A missing file is not an error when searching.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	cfg, err := config.LoadFromDir(".")
	if errors.Is(err, config.ErrNotFound) {
		return &config.Config{}, nil
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.LogLevel()
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Log.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// resolveType finds the message type in the configured descriptor sets, or
// in the types linked into the binary when none are configured.
func (c *command) resolveType() error {
	if len(c.cfg.Descriptors) == 0 {
		mt, err := protoregistry.GlobalTypes.FindMessageByName(protoreflect.FullName(strings.TrimPrefix(c.cfg.MessageType, ".")))
		if err != nil {
			return fmt.Errorf("%w: %s (no descriptor sets configured)", descriptors.ErrMessageNotFound, c.cfg.MessageType)
		}
		c.msgType = mt
		c.resolver = protoregistry.GlobalTypes
		return nil
	}

	set, err := descriptors.Load(c.cfg.Descriptors...)
	if err != nil {
		return err
	}
	mt, err := set.MessageType(c.cfg.MessageType)
	if err != nil {
		return err
	}

	c.logger.Debug("loaded descriptor sets", "files", c.cfg.Descriptors, "messages", len(set.MessageNames()))
	c.msgType = mt
	c.resolver = set.Resolver()
	return nil
}

func (c *command) readInput() ([]byte, error) {
	if c.input == "" || c.input == "-" {
		return io.ReadAll(c.stdin)
	}
	return os.ReadFile(c.input)
}

func (c *command) newMessage() proto.Message {
	return c.msgType.New().Interface()
}

func (c *command) newConverter() (*batch.Converter, error) {
	return batch.New(batch.Options{
		Concurrency:   c.cfg.Workers.Concurrency,
		Logger:        c.logger,
		EncodeOptions: c.cfg.EncodeOptions(),
		DecodeOptions: c.decodeOptions(),
	})
}

func (c *command) decodeOptions() []protodict.DecodeOption {
	return c.cfg.DecodeOptions(
		protodict.WithExtensionResolver(c.resolver),
		protodict.WithLogger(c.logger),
	)
}

func (c *command) unmarshalBinary(data []byte) (proto.Message, error) {
	msg := c.newMessage()
	opts := proto.UnmarshalOptions{Resolver: c.resolver}
	if err := opts.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("failed to parse binary %s: %w", c.cfg.MessageType, err)
	}
	return msg, nil
}

func (c *command) encode(ctx context.Context) error {
	data, err := c.readInput()
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	if c.lines {
		return c.encodeLines(ctx, data)
	}

	msg, err := c.unmarshalBinary(data)
	if err != nil {
		return err
	}

	f, err := c.cfg.FormatCodec()
	if err != nil {
		return err
	}
	out, err := format.EncodeMessage(f, msg, c.cfg.EncodeOptions()...)
	if err != nil {
		return err
	}
	if f.Name() == "json" {
		out = append(out, '\n')
	}

	c.logger.Debug("encoded message", "format", f.Name(), "bytes", len(out))
	_, err = c.stdout.Write(out)
	return err
}

func (c *command) encodeLines(ctx context.Context, data []byte) error {
	var msgs []proto.Message
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		raw, err := base64.StdEncoding.DecodeString(line)
		if err != nil {
			return fmt.Errorf("failed to decode base64 at line %d: %w", i+1, err)
		}
		msg, err := c.unmarshalBinary(raw)
		if err != nil {
			return fmt.Errorf("line %d: %w", i+1, err)
		}
		msgs = append(msgs, msg)
	}

	conv, err := c.newConverter()
	if err != nil {
		return err
	}
	defer conv.Close()

	results, err := conv.Encode(ctx, msgs)
	if err != nil {
		return err
	}

	c.logger.Debug("encoded records", "records", len(results), "workers", conv.Concurrency())
	return format.WriteJSONLines(c.stdout, results)
}

func (c *command) decode(ctx context.Context) error {
	data, err := c.readInput()
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	if c.lines {
		return c.decodeLines(ctx, data)
	}

	f, err := c.cfg.FormatCodec()
	if err != nil {
		return err
	}
	msg, err := format.DecodeMessage(f, data, c.newMessage(), c.decodeOptions()...)
	if err != nil {
		return err
	}

	out, err := proto.MarshalOptions{Deterministic: true}.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", c.cfg.MessageType, err)
	}

	c.logger.Debug("decoded message", "format", f.Name(), "bytes", len(out))
	_, err = c.stdout.Write(out)
	return err
}

func (c *command) decodeLines(ctx context.Context, data []byte) error {
	mappings, err := format.ParseJSONLines(data)
	if err != nil {
		return err
	}

	conv, err := c.newConverter()
	if err != nil {
		return err
	}
	defer conv.Close()

	msgs, err := conv.Decode(ctx, mappings, c.newMessage)
	if err != nil {
		return err
	}

	for i, msg := range msgs {
		out, err := proto.MarshalOptions{Deterministic: true}.Marshal(msg)
		if err != nil {
			return fmt.Errorf("failed to marshal record %d: %w", i, err)
		}
		if _, err := fmt.Fprintln(c.stdout, base64.StdEncoding.EncodeToString(out)); err != nil {
			return err
		}
	}

	c.logger.Debug("decoded records", "records", len(msgs), "workers", conv.Concurrency())
	return nil
}
