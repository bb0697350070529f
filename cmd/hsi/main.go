package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	gojson "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	hsi "github.com/reoring/hsi"
	"github.com/reoring/hsi/basic"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	sub := os.Args[1]
	switch sub {
	case "validate":
		validateCmd(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "hsi CLI\n\nUsage:\n  hsi validate [-schema hsi-1.0.schema.json] [-strict-only] [-basic-only] [-collect] payload.json ...\n\nNotes:\n  - Payloads may be JSON or YAML (by extension).\n  - BASIC checks schema conformance; STRICT checks referential/temporal integrity.")
}

func validateCmd(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	var schemaPath string
	var strictOnly bool
	var basicOnly bool
	var collect bool
	fs.StringVar(&schemaPath, "schema", "", "path to the canonical HSI schema (enables the BASIC layer)")
	fs.BoolVar(&strictOnly, "strict-only", false, "skip BASIC schema conformance")
	fs.BoolVar(&basicOnly, "basic-only", false, "skip STRICT integrity checking")
	fs.BoolVar(&collect, "collect", false, "report every STRICT violation instead of the first")
	_ = fs.Parse(args)
	files := fs.Args()
	if len(files) == 0 {
		fs.Usage()
		os.Exit(2)
	}
	if !strictOnly && schemaPath == "" && basicOnly {
		fatalf("-basic-only requires -schema")
	}

	var schema *jsonschema.Schema
	if schemaPath != "" && !strictOnly {
		var err error
		schema, err = basic.LoadSchemaFile(schemaPath)
		if err != nil {
			fatalf("%v", err)
		}
	}

	failed := false
	for _, path := range files {
		if !validateFile(path, schema, strictOnly, basicOnly, collect) {
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

func validateFile(path string, schema *jsonschema.Schema, strictOnly, basicOnly, collect bool) bool {
	payload, err := loadPayload(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
		return false
	}

	ok := true
	if schema != nil && !strictOnly {
		if err := basic.Validate(schema, payload); err != nil {
			fmt.Fprintf(os.Stderr, "%s: BASIC: %v\n", path, err)
			ok = false
		}
	}
	if !basicOnly {
		if err := hsi.Strict(payload, hsi.CheckOpt{Collect: collect}); err != nil {
			reportStrict(path, err)
			ok = false
		}
	}
	if ok {
		fmt.Printf("%s: ok\n", path)
	}
	return ok
}

func reportStrict(path string, err error) {
	iss, ok := hsi.AsIssues(err)
	if !ok {
		fmt.Fprintf(os.Stderr, "%s: STRICT: %v\n", path, err)
		return
	}
	for _, it := range iss {
		fmt.Fprintf(os.Stderr, "%s: STRICT: %s at %s: %s\n", path, it.Code, it.Path, it.Message)
	}
}

// loadPayload reads a payload file into a generic tree. JSON numbers are
// preserved as json.Number; YAML mappings are normalized to string keys.
func loadPayload(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var v any
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return hsi.NormalizeYAML(v), nil
	default:
		dec := gojson.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
