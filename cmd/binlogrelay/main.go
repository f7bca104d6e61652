// Command binlogrelay decodes MySQL binlog data and stages it into a
// segmented relay log, or inspects an existing one (SPEC_FULL.md 6).
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dbstream/binlogrelay/binlog"
	"github.com/dbstream/binlogrelay/config"
	"github.com/dbstream/binlogrelay/logging"
	"github.com/dbstream/binlogrelay/netsource"
	"github.com/dbstream/binlogrelay/relaylog"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "binlogrelay",
		Short: "Decode MySQL binlog data and stage it into a segmented relay log",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a TOML config file")

	root.AddCommand(newDumpCmd(&configPath))
	root.AddCommand(newStreamCmd(&configPath))
	root.AddCommand(newTailCmd())
	root.AddCommand(newCompactCmd())
	return root
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func newDumpCmd(configPath *string) *cobra.Command {
	var fromFile, fromDir, out string

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Decode a binlog file or directory and stage events into a relay log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if out != "" {
				cfg.Relay.Dir = out
			}
			if fromFile == "" && fromDir == "" {
				fromFile, fromDir = cfg.Source.FromFile, cfg.Source.FromDir
			}
			log := logging.New(cfg.Logging)

			var dec *binlog.Decoder
			switch {
			case fromFile != "":
				dec, err = binlog.OpenFile(fromFile)
			case fromDir != "":
				dec, err = binlog.OpenDirectory(fromDir, firstIndexedFile(fromDir))
			default:
				return fmt.Errorf("dump requires --from-file or --from-dir")
			}
			if err != nil {
				return err
			}

			relayCfg := relaylog.Config{
				RelayLogDir:       cfg.Relay.Dir,
				MaxSegmentSize:    cfg.Relay.MaxSegmentSizeBytes,
				MaxSegmentEntries: cfg.Relay.MaxSegmentEntries,
				EntryBufferNum:    cfg.Relay.EntryBufferNum,
				FlushOnCommit:     cfg.Relay.FlushOnCommit,
				CompactInterval:   cfg.Relay.CompactInterval(),
			}
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			svc := relaylog.NewService(ctx, relayCfg, relaylog.JSONCodec{})
			defer svc.Shutdown()

			return dumpLoop(ctx, dec, svc, log)
		},
	}
	cmd.Flags().StringVar(&fromFile, "from-file", "", "path to a single saved binlog file")
	cmd.Flags().StringVar(&fromDir, "from-dir", "", "path to a directory of rotated binlog files")
	cmd.Flags().StringVar(&out, "out", "", "relay-log output directory (overrides config)")
	return cmd
}

func dumpLoop(ctx context.Context, dec *binlog.Decoder, svc *relaylog.Service, log interface {
	Infof(string, ...interface{})
	Warnf(string, ...interface{})
}) error {
	staged := 0
	for {
		ev, err := dec.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Warnf("decode error, stopping: %v", err)
			break
		}

		re, ok := ev.Data.(*binlog.RowsEvent)
		if !ok || re.TableMap == nil {
			continue
		}
		rows, err := re.Rows()
		if err != nil {
			log.Warnf("row decode error: %v", err)
			continue
		}
		for _, row := range rows {
			entry := relaylog.RelayLogEntry{
				Database:   re.TableMap.SchemaName,
				Table:      re.TableMap.TableName,
				BinlogFile: dec.Context().File,
				LogPos:     ev.Header.LogPos,
				EventKind:  rowsEventKind(ev.Header.EventType),
				Before:     row.Before,
				After:      row.After,
			}
			if err := svc.Stage(ctx, entry); err != nil {
				return fmt.Errorf("stage event: %w", err)
			}
			staged++
		}
	}
	log.Infof("staged %d row events", staged)
	return nil
}

// newStreamCmd connects to a live MySQL primary over the network
// (netsource) and stages its replication stream into a relay log,
// exercising the §1 "network stream" input format rather than a saved
// file. dsn is "network:address[,ssl][,user=...][,password=...]",
// matching the teacher CLI's own address syntax.
func newStreamCmd(configPath *string) *cobra.Command {
	var dsn, fromFile string
	var fromPos uint32
	var serverID uint32

	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Connect to a live MySQL primary and stage its binlog stream into a relay log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			log := logging.New(cfg.Logging)

			network, address, user, passwd, useSSL, err := parseDSN(dsn)
			if err != nil {
				return err
			}

			conn, err := netsource.Dial(network, address, 10*time.Second)
			if err != nil {
				return fmt.Errorf("dial %s: %w", address, err)
			}
			defer conn.Close()
			if useSSL {
				if !conn.IsSSLSupported() {
					return fmt.Errorf("stream: server does not support TLS")
				}
				if err := conn.UpgradeSSL(nil); err != nil {
					return err
				}
			}
			if err := conn.Authenticate(user, passwd); err != nil {
				return fmt.Errorf("authenticate: %w", err)
			}

			if fromFile == "" {
				fromFile, fromPos, err = conn.MasterStatus()
				if err != nil {
					return fmt.Errorf("master status: %w", err)
				}
			}
			if err := conn.Seek(serverID, fromFile, fromPos); err != nil {
				return fmt.Errorf("seek %s:%d: %w", fromFile, fromPos, err)
			}
			log.Infof("streaming from %s:%d", fromFile, fromPos)

			dec := binlog.NewDecoder(conn.BinlogStream())
			dec.Context().File = fromFile
			dec.Context().Position = fromPos

			relayCfg := relaylog.Config{
				RelayLogDir:       cfg.Relay.Dir,
				MaxSegmentSize:    cfg.Relay.MaxSegmentSizeBytes,
				MaxSegmentEntries: cfg.Relay.MaxSegmentEntries,
				EntryBufferNum:    cfg.Relay.EntryBufferNum,
				FlushOnCommit:     cfg.Relay.FlushOnCommit,
				CompactInterval:   cfg.Relay.CompactInterval(),
			}
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			svc := relaylog.NewService(ctx, relayCfg, relaylog.JSONCodec{})
			defer svc.Shutdown()

			return dumpLoop(ctx, dec, svc, log)
		},
	}
	cmd.Flags().StringVar(&dsn, "dsn", "", "tcp:host:port[,ssl][,user=...][,password=...]")
	cmd.Flags().StringVar(&fromFile, "from-file", "", "binlog file to start from (default: current master position)")
	cmd.Flags().Uint32Var(&fromPos, "from-pos", 4, "position within --from-file to start from")
	cmd.Flags().Uint32Var(&serverID, "server-id", 0, "replica server-id to present (0 = non-blocking dump)")
	cmd.MarkFlagRequired("dsn")
	return cmd
}

// parseDSN splits the "stream" command's --dsn flag into netsource.Dial
// arguments plus credentials, matching the teacher CLI's comma-separated
// option syntax (e.g. "tcp:localhost:3306,ssl,user=root,password=pw").
func parseDSN(dsn string) (network, address, user, passwd string, useSSL bool, err error) {
	colon := strings.IndexByte(dsn, ':')
	if colon == -1 {
		return "", "", "", "", false, fmt.Errorf("invalid --dsn %q: want network:address[,opt...]", dsn)
	}
	network = dsn[:colon]
	rest := dsn[colon+1:]
	tok := strings.Split(rest, ",")
	address = tok[0]
	for _, t := range tok[1:] {
		switch {
		case t == "ssl":
			useSSL = true
		case strings.HasPrefix(t, "user="):
			user = strings.TrimPrefix(t, "user=")
		case strings.HasPrefix(t, "password="):
			passwd = strings.TrimPrefix(t, "password=")
		}
	}
	return network, address, user, passwd, useSSL, nil
}

func rowsEventKind(t binlog.EventType) string {
	switch t {
	case binlog.WriteRowsEventV0, binlog.WriteRowsEventV1, binlog.WriteRowsEventV2:
		return "insert"
	case binlog.UpdateRowsEventV0, binlog.UpdateRowsEventV1, binlog.UpdateRowsEventV2:
		return "update"
	case binlog.DeleteRowsEventV0, binlog.DeleteRowsEventV1, binlog.DeleteRowsEventV2:
		return "delete"
	default:
		return "unknown"
	}
}

func newTailCmd() *cobra.Command {
	var relayDir, db, table string
	var from uint64

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Read decoded entries back out of a segment manager",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := relaylog.DefaultConfig(relayDir)
			mgr, err := relaylog.OpenSegmentManager(cfg, db, table)
			if err != nil {
				return err
			}
			defer mgr.Close()

			codec := relaylog.JSONCodec{}
			for idx := from; ; idx++ {
				payload, err := mgr.GetEntry(idx)
				if err != nil {
					break
				}
				entry, err := codec.Decode(payload)
				if err != nil {
					return err
				}
				fmt.Printf("%d: %+v\n", idx, entry)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&relayDir, "relay-dir", "", "relay-log base directory")
	cmd.Flags().StringVar(&db, "db", "", "database name")
	cmd.Flags().StringVar(&table, "table", "", "table name")
	cmd.Flags().Uint64Var(&from, "from", 0, "logical index to start reading from")
	cmd.MarkFlagRequired("relay-dir")
	cmd.MarkFlagRequired("db")
	cmd.MarkFlagRequired("table")
	return cmd
}

func newCompactCmd() *cobra.Command {
	var relayDir, db, table string
	var below uint64

	cmd := &cobra.Command{
		Use:   "compact",
		Short: "Force an out-of-band compaction pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := relaylog.DefaultConfig(relayDir)
			mgr, err := relaylog.OpenSegmentManager(cfg, db, table)
			if err != nil {
				return err
			}
			defer mgr.Close()
			return mgr.Compact(below)
		},
	}
	cmd.Flags().StringVar(&relayDir, "relay-dir", "", "relay-log base directory")
	cmd.Flags().StringVar(&db, "db", "", "database name")
	cmd.Flags().StringVar(&table, "table", "", "table name")
	cmd.Flags().Uint64Var(&below, "below", 0, "compact away segments entirely below this logical index")
	cmd.MarkFlagRequired("relay-dir")
	cmd.MarkFlagRequired("db")
	cmd.MarkFlagRequired("table")
	return cmd
}

// firstIndexedFile returns the oldest binlog file listed in dir's
// binlog.index, or "" if the index is absent/empty (OpenDirectory will
// then fail with a clear error rather than guessing a file name).
func firstIndexedFile(dir string) string {
	data, err := os.ReadFile(dir + "/binlog.index")
	if err != nil {
		return ""
	}
	for _, line := range splitLines(string(data)) {
		if line != "" {
			return line
		}
	}
	return ""
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}
