package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ergochat/readline"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/jake-bladt/automerge"
	"github.com/jake-bladt/automerge/host"
	"github.com/jake-bladt/automerge/oplog"
	"github.com/jake-bladt/automerge/rdx"
)

// REPL per se.
type REPL struct {
	Host *host.Replica
	Out  io.Writer
	reg  *prometheus.Registry
	rl   *readline.Instance
}

var ErrUsage = errors.New("usage")

var completer = readline.NewPrefixCompleter(
	readline.PcItem("help"),

	readline.PcItem("get"),
	readline.PcItem("set"),
	readline.PcItem("del"),
	readline.PcItem("push"),
	readline.PcItem("inc"),

	readline.PcItem("show"),
	readline.PcItem("conflicts"),
	readline.PcItem("history"),
	readline.PcItem("changes"),
	readline.PcItem("clock"),
	readline.PcItem("dump"),
	readline.PcItem("metrics"),

	readline.PcItem("save"),
	readline.PcItem("merge"),

	readline.PcItem("exit"),
	readline.PcItem("quit"),
)

func filterInput(r rune) (rune, bool) {
	switch r {
	// block CtrlZ feature
	case readline.CharCtrlZ:
		return r, false
	}
	return r, true
}

func NewREPL(r *host.Replica, out io.Writer) (*REPL, error) {
	repl := &REPL{Host: r, Out: out, reg: prometheus.NewRegistry()}
	if err := r.Register(repl.reg); err != nil {
		return nil, err
	}
	return repl, nil
}

func (repl *REPL) Open() (err error) {
	repl.rl, err = readline.NewEx(&readline.Config{
		Prompt:          "◌ ",
		HistoryFile:     ".automerge_cmd_log.txt",
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",

		HistorySearchFold:   true,
		FuncFilterInputRune: filterInput,
	})
	if err != nil {
		return
	}
	repl.rl.CaptureExitSignal()
	return
}

func (repl *REPL) Close() error {
	if repl.rl != nil {
		_ = repl.rl.Close()
		repl.rl = nil
	}
	return nil
}

// REPL reads and runs one line.
func (repl *REPL) REPL(ctx context.Context) error {
	line, err := repl.rl.Readline()
	if errors.Is(err, readline.ErrInterrupt) && len(line) != 0 {
		return nil
	}
	if err != nil {
		return err
	}
	return repl.Execute(ctx, line)
}

func splitCommand(line string) (cmd, rest string) {
	line = strings.TrimSpace(line)
	cmd, rest, _ = strings.Cut(line, " ")
	return cmd, strings.TrimSpace(rest)
}

// Execute runs one command line; exit and quit return io.EOF.
func (repl *REPL) Execute(ctx context.Context, line string) error {
	cmd, rest := splitCommand(line)
	switch cmd {
	case "":
		return nil
	case "exit", "quit":
		return io.EOF
	case "help":
		fmt.Fprintln(repl.Out, "get|set|del|push|inc path [value], show [yaml|json], conflicts [path],")
		fmt.Fprintln(repl.Out, "history, changes [clock], clock, dump, metrics, save file, merge dir|file, exit")
		return nil
	case "get":
		return repl.CommandGet(rest)
	case "set", "push", "inc":
		path, text := splitCommand(rest)
		if path == "" || text == "" {
			return fmt.Errorf("%w: %s path value", ErrUsage, cmd)
		}
		return repl.CommandEdit(ctx, cmd, path, text)
	case "del":
		if rest == "" {
			return fmt.Errorf("%w: del path", ErrUsage)
		}
		return repl.CommandEdit(ctx, cmd, rest, "")
	case "show":
		if rest == "" {
			rest = "yaml"
		}
		return WriteDoc(repl.Out, repl.Host.Doc(), rest)
	case "conflicts":
		return repl.CommandConflicts(rest)
	case "history":
		return repl.CommandHistory()
	case "changes":
		return repl.CommandChanges(rest)
	case "clock":
		fmt.Fprintln(repl.Out, repl.Host.Doc().Clock().String())
		return nil
	case "dump":
		repl.Host.Doc().Dump(repl.Out)
		return nil
	case "metrics":
		return repl.CommandMetrics()
	case "save":
		if rest == "" {
			return fmt.Errorf("%w: save file", ErrUsage)
		}
		return os.WriteFile(rest, automerge.Save(repl.Host.Doc()), 0o644)
	case "merge":
		if rest == "" {
			return fmt.Errorf("%w: merge dir|file", ErrUsage)
		}
		return MergeSource(ctx, repl.Host, rest)
	}
	return fmt.Errorf("command unknown: %s", cmd)
}

// lookup resolves a dotted path against the current snapshot.
func (repl *REPL) lookup(path string) (any, error) {
	var cur any = repl.Host.Doc().Root()
	if path == "" {
		return cur, nil
	}
	for _, key := range strings.Split(path, ".") {
		switch v := cur.(type) {
		case *automerge.MapValue:
			cur = v.Get(key)
		case *automerge.ListValue:
			i, err := strconv.Atoi(key)
			if err != nil {
				return nil, fmt.Errorf("%w: %s", ErrBadPath, path)
			}
			cur = v.Get(i)
		default:
			return nil, fmt.Errorf("%w: %s", ErrBadPath, path)
		}
	}
	return cur, nil
}

func (repl *REPL) CommandGet(path string) error {
	v, err := repl.lookup(path)
	if err != nil {
		return err
	}
	switch x := v.(type) {
	case *automerge.MapValue:
		v = x.Native()
	case *automerge.ListValue:
		v = x.Native()
	}
	fmt.Fprintf(repl.Out, "%v\n", v)
	return nil
}

func (repl *REPL) CommandEdit(ctx context.Context, cmd, path, text string) error {
	var value any
	if text != "" {
		var err error
		if value, err = ParseValue(text); err != nil {
			return err
		}
	}
	_, err := repl.Host.Change(ctx, cmd+" "+path, func(root *automerge.Map) (*automerge.Map, error) {
		m, key, err := Walk(root, path)
		if err != nil {
			return nil, err
		}
		switch cmd {
		case "set":
			m.Set(key, value)
		case "del":
			m.Delete(key)
		case "push":
			m.List(key).Push(value)
		case "inc":
			delta, ok := value.(int)
			if !ok {
				return nil, fmt.Errorf("%w: inc path number", ErrUsage)
			}
			if !m.Has(key) {
				m.Set(key, automerge.Counter(0))
			}
			m.Increment(key, int64(delta))
		}
		return root, nil
	})
	return err
}

func (repl *REPL) CommandConflicts(path string) error {
	v, err := repl.lookup(path)
	if err != nil {
		return err
	}
	obj, ok := v.(automerge.Object)
	if !ok {
		return fmt.Errorf("%w: %s is not an object", ErrBadPath, path)
	}
	fields, err := automerge.GetConflicts(repl.Host.Doc(), obj)
	if err != nil {
		return err
	}
	for _, f := range fields {
		slot := f.Key
		if slot == "" {
			slot = strconv.Itoa(f.Index)
		}
		fmt.Fprintf(repl.Out, "%s\t%v", slot, f.Value)
		for _, c := range f.Conflicts {
			fmt.Fprintf(repl.Out, "\t%s:%v", c.Actor.Short(), c.Value)
		}
		fmt.Fprintln(repl.Out)
	}
	return nil
}

func (repl *REPL) printChange(ch *oplog.Change) {
	fmt.Fprintf(repl.Out, "%s\t%d ops\t%s\n", ch.Key(), len(ch.Ops), ch.Message)
}

func (repl *REPL) CommandHistory() error {
	history, err := automerge.GetHistory(repl.Host.Doc())
	if err != nil {
		return err
	}
	for _, h := range history {
		repl.printChange(h.Change)
	}
	return nil
}

// CommandChanges lists the stored changes a peer at the given clock,
// e.g. "alice:3,bob:1", still lacks.
func (repl *REPL) CommandChanges(clock string) error {
	have, err := rdx.ClockFromString(clock)
	if err != nil {
		return err
	}
	changes, err := repl.Host.ChangesSince(have)
	if err != nil {
		return err
	}
	for _, ch := range changes {
		repl.printChange(ch)
	}
	return nil
}

func (repl *REPL) CommandMetrics() error {
	families, err := repl.reg.Gather()
	if err != nil {
		return err
	}
	for _, f := range families {
		for _, m := range f.GetMetric() {
			var value float64
			switch {
			case m.GetCounter() != nil:
				value = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				value = m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				value = float64(m.GetHistogram().GetSampleCount())
			}
			labels := make([]string, 0, len(m.GetLabel()))
			for _, l := range m.GetLabel() {
				labels = append(labels, l.GetName()+"="+l.GetValue())
			}
			fmt.Fprintf(repl.Out, "%s{%s}\t%g\n", f.GetName(), strings.Join(labels, ","), value)
		}
	}
	return nil
}

func runREPL(cmd *cobra.Command, args []string) error {
	r, err := openReplica(replicaDir, rdx.ActorID(actor))
	if err != nil {
		return err
	}
	defer r.Close()
	repl, err := NewREPL(r, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	if err = repl.Open(); err != nil {
		return err
	}
	defer repl.Close()
	fmt.Fprintf(repl.Out, "replica %s, actor %s\n", r.Dir(), r.Actor())
	for {
		err = repl.REPL(cmd.Context())
		if errors.Is(err, io.EOF) {
			return nil
		} else if errors.Is(err, readline.ErrInterrupt) {
			return nil
		} else if err != nil {
			fmt.Fprintf(repl.Out, "%s\n", err.Error())
		}
	}
}
