package main

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/trellisdb/trellis/engine"
	"github.com/trellisdb/trellis/schema"
	"github.com/trellisdb/trellis/value"
)

// executeArgs runs the given root command with args and returns any error.
// It suppresses cobra's usage/error output so test output stays clean.
func executeArgs(t *testing.T, root *cobra.Command, args ...string) error {
	t.Helper()
	root.SetOut(&strings.Builder{})
	root.SetErr(&strings.Builder{})
	root.SetArgs(args)
	_, err := root.ExecuteC()
	return err
}

// newTestRoot builds a root command tree identical to main() but with
// PersistentPreRun stubbed out so no database is ever opened.
func newTestRoot() *cobra.Command {
	root := &cobra.Command{
		Use:          "trellis",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Skip database open in tests.
		},
	}
	root.PersistentFlags().StringVar(&flagDB, "db", "", "")
	root.PersistentFlags().StringVar(&flagSchema, "schema", "", "")
	root.PersistentFlags().StringVar(&flagFmt, "format", "json", "")

	root.AddCommand(newNodeCmd())
	root.AddCommand(newEdgeCmd())
	root.AddCommand(newTraverseCmd())
	root.AddCommand(newPathCmd())
	return root
}

// --- hop flag ordering ---

// TestParseHopsOrdering verifies that interleaved --out/--in/--both flags come
// back in command-line order, which pflag's per-flag grouping cannot provide.
func TestParseHopsOrdering(t *testing.T) {
	argv := []string{"traverse", "person:ada", "--out=knows", "--in", "--both=likes", "--out"}
	hops := parseHops(argv)

	want := []hopFlag{
		{dir: "out", typ: "knows"},
		{dir: "in"},
		{dir: "both", typ: "likes"},
		{dir: "out"},
	}
	if !reflect.DeepEqual(hops, want) {
		t.Errorf("hops:\n got %+v\nwant %+v", hops, want)
	}
}

func TestParseHopsIgnoresOtherFlags(t *testing.T) {
	argv := []string{"traverse", "42", "--format=json", "--count", "--in=reports_to", "--verbose"}
	hops := parseHops(argv)

	want := []hopFlag{{dir: "in", typ: "reports_to"}}
	if !reflect.DeepEqual(hops, want) {
		t.Errorf("hops: got %+v, want %+v", hops, want)
	}
}

// TestParseHopsStopsAtDoubleDash verifies the scan honours the -- terminator
// the same way pflag does.
func TestParseHopsStopsAtDoubleDash(t *testing.T) {
	hops := parseHops([]string{"traverse", "--out", "--", "--in"})
	if len(hops) != 1 || hops[0].dir != "out" {
		t.Errorf("expected single out hop, got %+v", hops)
	}
}

// TestParseHopsStarIsUnfiltered verifies --out=* behaves like a bare --out,
// since * is the NoOptDefVal cobra substitutes for a bare flag.
func TestParseHopsStarIsUnfiltered(t *testing.T) {
	hops := parseHops([]string{"--out=*"})
	if len(hops) != 1 {
		t.Fatalf("expected one hop, got %+v", hops)
	}
	if hops[0].typ != "" {
		t.Errorf("star hop should carry no type filter, got %q", hops[0].typ)
	}
}

func TestParseHopsTrimsType(t *testing.T) {
	hops := parseHops([]string{"--both= knows "})
	if len(hops) != 1 || hops[0].typ != "knows" {
		t.Errorf("got %+v, want one hop with type %q", hops, "knows")
	}
}

// resolveEdge rejects comma lists up front: a hop filters on a single edge
// type, and extra hops take extra flags.
func TestResolveEdgeRejectsCommaList(t *testing.T) {
	if _, err := resolveEdge("knows,likes"); err == nil {
		t.Error("expected an error for a comma-separated type list")
	}
}

func TestResolveEdgeEmptyMeansAny(t *testing.T) {
	def, err := resolveEdge("")
	if err != nil {
		t.Fatalf("resolveEdge: %v", err)
	}
	if def != nil {
		t.Errorf("empty name should resolve to nil, got %+v", def)
	}
}

func TestParseHopsEmpty(t *testing.T) {
	if hops := parseHops([]string{"traverse", "person:ada"}); len(hops) != 0 {
		t.Errorf("expected no hops, got %+v", hops)
	}
}

// --- direction parsing ---

func TestParseDirection(t *testing.T) {
	cases := []struct {
		in      string
		want    engine.Direction
		wantErr bool
	}{
		{"out", engine.DirectionOut, false},
		{"in", engine.DirectionIn, false},
		{"both", engine.DirectionBoth, false},
		{"OUT", engine.DirectionOut, false},
		{"Both", engine.DirectionBoth, false},
		{"sideways", "", true},
		{"", "", true},
	}
	for _, tc := range cases {
		d, err := parseDirection(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("parseDirection(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseDirection(%q): %v", tc.in, err)
			continue
		}
		if d != tc.want {
			t.Errorf("parseDirection(%q): got %q, want %q", tc.in, d, tc.want)
		}
	}
}

// --- node refs ---

func TestParseNodeRef(t *testing.T) {
	cases := []struct {
		in      string
		want    nodeRef
		wantErr bool
	}{
		{"42", nodeRef{byID: true, id: 42}, false},
		{"person:ada", nodeRef{typ: "person", key: "ada"}, false},
		{"doc:a:b:c", nodeRef{typ: "doc", key: "a:b:c"}, false},
		{"person:", nodeRef{typ: "person", key: ""}, false},
		{"ada", nodeRef{}, true},
		{":key", nodeRef{}, true},
		{"", nodeRef{}, true},
	}
	for _, tc := range cases {
		ref, err := parseNodeRef(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("parseNodeRef(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseNodeRef(%q): %v", tc.in, err)
			continue
		}
		if ref != tc.want {
			t.Errorf("parseNodeRef(%q): got %+v, want %+v", tc.in, ref, tc.want)
		}
	}
}

// --- props parsing ---

func propTestDef(t *testing.T) *schema.NodeDef {
	t.Helper()
	sch := schema.New()
	return sch.MustNode("person",
		schema.Prop("name", value.KindString),
		schema.Prop("age", value.KindInt),
		schema.Prop("score", value.KindFloat),
		schema.Prop("active", value.KindBool),
		schema.Prop("born", value.KindTime),
		schema.Prop("avatar", value.KindBytes),
	)
}

// TestParsePropsCoercion verifies JSON values land in the Go types the
// declared kinds expect: JSON numbers split into int64 and float64, and
// strings decode into timestamps and bytes where declared.
func TestParsePropsCoercion(t *testing.T) {
	def := propTestDef(t)

	props, err := parseProps(def, `{
		"name": "Ada",
		"age": 36,
		"score": 9.5,
		"active": true,
		"born": "1815-12-10T00:00:00Z",
		"avatar": "aGk="
	}`)
	if err != nil {
		t.Fatalf("parseProps: %v", err)
	}

	if got := props["name"]; got != "Ada" {
		t.Errorf("name: got %#v", got)
	}
	if got, ok := props["age"].(int64); !ok || got != 36 {
		t.Errorf("age: got %#v, want int64 36", props["age"])
	}
	if got, ok := props["score"].(float64); !ok || got != 9.5 {
		t.Errorf("score: got %#v, want float64 9.5", props["score"])
	}
	if got, ok := props["active"].(bool); !ok || !got {
		t.Errorf("active: got %#v, want true", props["active"])
	}
	born, ok := props["born"].(time.Time)
	if !ok || !born.Equal(time.Date(1815, 12, 10, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("born: got %#v", props["born"])
	}
	avatar, ok := props["avatar"].([]byte)
	if !ok || string(avatar) != "hi" {
		t.Errorf("avatar: got %#v", props["avatar"])
	}
}

func TestParsePropsEmpty(t *testing.T) {
	props, err := parseProps(propTestDef(t), "")
	if err != nil {
		t.Fatalf("parseProps: %v", err)
	}
	if props != nil {
		t.Errorf("expected nil props, got %v", props)
	}
}

func TestParsePropsBadJSON(t *testing.T) {
	if _, err := parseProps(propTestDef(t), `{"name": `); err == nil {
		t.Error("expected error for truncated JSON")
	}
	if _, err := parseProps(propTestDef(t), `["not", "an", "object"]`); err == nil {
		t.Error("expected error for non-object JSON")
	}
}

func TestParsePropsBadCoercion(t *testing.T) {
	def := propTestDef(t)
	if _, err := parseProps(def, `{"born": "yesterday"}`); err == nil {
		t.Error("expected error for a non-RFC3339 time")
	}
	if _, err := parseProps(def, `{"avatar": "!!not-base64!!"}`); err == nil {
		t.Error("expected error for invalid base64")
	}
	if _, err := parseProps(def, `{"age": 9.5}`); err == nil {
		t.Error("expected error for fractional int")
	}
}

// TestParsePropsUndeclaredPassThrough verifies undeclared names survive
// untouched; the write path owns rejecting them.
func TestParsePropsUndeclaredPassThrough(t *testing.T) {
	props, err := parseProps(propTestDef(t), `{"nickname": "countess"}`)
	if err != nil {
		t.Fatalf("parseProps: %v", err)
	}
	if got := props["nickname"]; got != "countess" {
		t.Errorf("nickname: got %#v", got)
	}

	props, err = parseProps(propTestDef(t), `{"flops": 7}`)
	if err != nil {
		t.Fatalf("parseProps: %v", err)
	}
	if _, ok := props["flops"].(json.Number); !ok {
		t.Errorf("undeclared number should stay a json.Number, got %#v", props["flops"])
	}
}

// --- arg counts ---

func TestNodeAddArgCount(t *testing.T) {
	argsValidator := cobra.ExactArgs(1)

	if err := argsValidator(nil, []string{"ada"}); err != nil {
		t.Errorf("one arg should be valid, got: %v", err)
	}
	if err := argsValidator(nil, []string{}); err == nil {
		t.Error("zero args should fail ExactArgs(1)")
	}
	if err := argsValidator(nil, []string{"a", "b"}); err == nil {
		t.Error("two args should fail ExactArgs(1)")
	}
}

func TestEdgeAddArgValidation(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing both args", []string{"edge", "add"}},
		{"missing target", []string{"edge", "add", "person:ada"}},
		{"too many args", []string{"edge", "add", "a", "b", "c"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			root := newTestRoot()
			if err := executeArgs(t, root, tc.args...); err == nil {
				t.Errorf("expected error, got nil")
			}
		})
	}
}

func TestTraverseRequiresStartNode(t *testing.T) {
	root := newTestRoot()
	if err := executeArgs(t, root, "traverse"); err == nil {
		t.Error("expected error for traverse without start nodes")
	}
}

func TestPathArgCount(t *testing.T) {
	argsValidator := cobra.ExactArgs(2)

	cases := []struct {
		args    []string
		wantErr bool
	}{
		{[]string{"person:ada", "person:alan"}, false},
		{[]string{"person:ada"}, true},
		{[]string{}, true},
		{[]string{"a", "b", "c"}, true},
	}
	for _, tc := range cases {
		err := argsValidator(nil, tc.args)
		if tc.wantErr && err == nil {
			t.Errorf("args %v: expected error", tc.args)
		}
		if !tc.wantErr && err != nil {
			t.Errorf("args %v: unexpected error: %v", tc.args, err)
		}
	}
}

// --- flag registration ---

// TestTraverseHopFlagRegistration verifies the hop flags accept a bare form:
// NoOptDefVal is what lets cobra parse --out without a value.
func TestTraverseHopFlagRegistration(t *testing.T) {
	cmd := newTraverseCmd()
	for _, name := range []string{"out", "in", "both"} {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			t.Errorf("--%s flag not found on traverse", name)
			continue
		}
		if f.NoOptDefVal != "*" {
			t.Errorf("--%s NoOptDefVal: got %q, want %q", name, f.NoOptDefVal, "*")
		}
	}
}

func TestTraverseFlagDefaults(t *testing.T) {
	cmd := newTraverseCmd()
	cases := []struct {
		flag string
		want string
	}{
		{"count", "false"},
		{"first", "false"},
	}
	for _, tc := range cases {
		f := cmd.Flags().Lookup(tc.flag)
		if f == nil {
			t.Errorf("--%s flag not found", tc.flag)
			continue
		}
		if f.DefValue != tc.want {
			t.Errorf("--%s default: got %q, want %q", tc.flag, f.DefValue, tc.want)
		}
	}
}

func TestPathFlagDefaults(t *testing.T) {
	cmd := newPathCmd()
	cases := []struct {
		flag string
		want string
	}{
		{"via", ""},
		{"max-depth", "0"},
		{"direction", "out"},
		{"weighted", "false"},
		{"exists", "false"},
	}
	for _, tc := range cases {
		f := cmd.Flags().Lookup(tc.flag)
		if f == nil {
			t.Errorf("--%s flag not found", tc.flag)
			continue
		}
		if f.DefValue != tc.want {
			t.Errorf("--%s default: got %q, want %q", tc.flag, f.DefValue, tc.want)
		}
	}
}

func TestNodeAddFlagRegistration(t *testing.T) {
	cmd := nodeAddCmd()
	for _, name := range []string{"type", "props"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("--%s flag not found on node add", name)
		}
	}
}

func TestEdgeAddFlagDefaults(t *testing.T) {
	cmd := edgeAddCmd()
	f := cmd.Flags().Lookup("weight")
	if f == nil {
		t.Fatal("--weight flag not found on edge add")
	}
	if f.DefValue != "1" {
		t.Errorf("default weight: got %q, want %q", f.DefValue, "1")
	}
}

// --- global format flag ---

func TestFormatFlagDefault(t *testing.T) {
	root := newTestRoot()
	f := root.PersistentFlags().Lookup("format")
	if f == nil {
		t.Fatal("--format flag not found")
	}
	if f.DefValue != "json" {
		t.Errorf("default format: got %q, want %q", f.DefValue, "json")
	}
}

// TestFormatFlagValues verifies the format values the output functions branch
// on: "json", "table" and "quiet".
func TestFormatFlagValues(t *testing.T) {
	validFormats := []string{"json", "table", "quiet"}
	for _, fmtName := range validFormats {
		flagFmt = fmtName
		// output() must not panic for any of these values.
		captureStdout(t, func() { output(map[string]string{"k": "v"}, "id") })
	}
}
