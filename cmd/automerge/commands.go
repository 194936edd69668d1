package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jake-bladt/automerge"
	"github.com/jake-bladt/automerge/host"
	"github.com/jake-bladt/automerge/rdx"
)

var ErrBadFormat = errors.New("format must be yaml or json")
var ErrBadPath = errors.New("bad path")

// ParseValue reads a YAML scalar, map or list into values a document
// accepts. #N makes a counter.
func ParseValue(text string) (any, error) {
	if n, ok := strings.CutPrefix(text, "#"); ok {
		var c int64
		if _, err := fmt.Sscanf(n, "%d", &c); err == nil {
			return automerge.Counter(c), nil
		}
	}
	var v any
	if err := yaml.Unmarshal([]byte(text), &v); err != nil {
		return nil, err
	}
	return v, nil
}

// Walk follows dot-separated map keys from the root, making missing
// maps on the way; the last key is returned for the caller to act on.
func Walk(root *automerge.Map, path string) (*automerge.Map, string, error) {
	keys := strings.Split(path, ".")
	for _, key := range keys {
		if key == "" {
			return nil, "", fmt.Errorf("%w: %q", ErrBadPath, path)
		}
	}
	m := root
	for _, key := range keys[:len(keys)-1] {
		if !m.Has(key) {
			m.Set(key, map[string]any{})
		}
		m = m.Map(key)
	}
	return m, keys[len(keys)-1], nil
}

func WriteDoc(w io.Writer, doc *automerge.Document, format string) error {
	native := automerge.Inspect(doc)
	switch format {
	case "yaml":
		return yaml.NewEncoder(w).Encode(native)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(native)
	}
	return ErrBadFormat
}

func runShow(cmd *cobra.Command, args []string) error {
	r, err := openReplica(replicaDir, rdx.ActorID(actor))
	if err != nil {
		return err
	}
	defer r.Close()
	return WriteDoc(cmd.OutOrStdout(), r.Doc(), format)
}

func runSet(cmd *cobra.Command, args []string) error {
	value, err := ParseValue(args[1])
	if err != nil {
		return err
	}
	r, err := openReplica(replicaDir, rdx.ActorID(actor))
	if err != nil {
		return err
	}
	defer r.Close()
	_, err = r.Change(cmd.Context(), "set "+args[0], func(root *automerge.Map) (*automerge.Map, error) {
		m, key, err := Walk(root, args[0])
		if err != nil {
			return nil, err
		}
		m.Set(key, value)
		return root, nil
	})
	return err
}

// MergeSource merges a replica directory or a saved file into r.
func MergeSource(ctx context.Context, r *host.Replica, source string) error {
	info, err := os.Stat(source)
	if err != nil {
		return err
	}
	var other *automerge.Document
	if info.IsDir() {
		o, err := openReplica(source, "")
		if err != nil {
			return err
		}
		other = o.Doc()
		_ = o.Close()
	} else {
		data, err := os.ReadFile(source)
		if err != nil {
			return err
		}
		if other, err = automerge.Load(data, automerge.Options{}); err != nil {
			return err
		}
	}
	_, err = r.Merge(ctx, other)
	return err
}

func runMerge(cmd *cobra.Command, args []string) error {
	r, err := openReplica(replicaDir, rdx.ActorID(actor))
	if err != nil {
		return err
	}
	defer r.Close()
	for _, source := range args {
		if err = MergeSource(cmd.Context(), r, source); err != nil {
			return fmt.Errorf("%s: %w", source, err)
		}
	}
	return nil
}

func runSave(cmd *cobra.Command, args []string) error {
	r, err := openReplica(replicaDir, rdx.ActorID(actor))
	if err != nil {
		return err
	}
	defer r.Close()
	return os.WriteFile(args[0], automerge.Save(r.Doc()), 0o644)
}
