// Package main provides a CLI that checks two generated swagger.yaml revisions
// for breaking API changes before a deploy.
//
// A change is breaking when it removes a path, operation, or response code a
// client may depend on, makes a previously optional parameter required, or
// puts auth in front of a previously public operation.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var supportedMethods = map[string]struct{}{
	"get":     {},
	"put":     {},
	"post":    {},
	"delete":  {},
	"patch":   {},
	"head":    {},
	"options": {},
}

// specOp is the compatibility-relevant surface of one operation.
type specOp struct {
	secured   bool
	required  map[string]struct{} // "in:name" of required parameters
	responses map[string]struct{}
}

// apiSpec maps path -> method -> operation surface.
type apiSpec map[string]map[string]specOp

type rawParam struct {
	Name     string `yaml:"name"`
	In       string `yaml:"in"`
	Required bool   `yaml:"required"`
}

type rawOp struct {
	Security   []map[string][]string `yaml:"security"`
	Parameters []rawParam            `yaml:"parameters"`
	Responses  map[string]yaml.Node  `yaml:"responses"`
}

func main() {
	basePath := flag.String("base", "", "base swagger.yaml (the published surface)")
	revisionPath := flag.String("revision", "", "revision swagger.yaml (the candidate)")
	list := flag.Bool("list", false, "print the base spec's operation inventory and exit")
	flag.Parse()

	if strings.TrimSpace(*basePath) == "" {
		fmt.Fprintln(os.Stderr, "usage: openapi-compat -base <path> [-revision <path> | -list]")
		os.Exit(2)
	}

	base, err := loadSpec(*basePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load base spec: %v\n", err)
		os.Exit(1)
	}

	if *list {
		for _, line := range inventory(base) {
			fmt.Println(line)
		}
		return
	}

	if strings.TrimSpace(*revisionPath) == "" {
		fmt.Fprintln(os.Stderr, "usage: openapi-compat -base <path> -revision <path>")
		os.Exit(2)
	}

	revision, err := loadSpec(*revisionPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load revision spec: %v\n", err)
		os.Exit(1)
	}

	issues := breakingChanges(base, revision)
	if len(issues) > 0 {
		fmt.Fprintln(os.Stderr, "breaking changes found:")
		for _, issue := range issues {
			fmt.Fprintf(os.Stderr, "- %s\n", issue)
		}
		os.Exit(1)
	}

	fmt.Println("no breaking changes")
}

func loadSpec(path string) (apiSpec, error) {
	// #nosec G304: path comes from CLI flags in a dev tool
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc struct {
		Paths map[string]map[string]yaml.Node `yaml:"paths"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if doc.Paths == nil {
		return nil, errors.New("missing top-level paths field")
	}

	spec := make(apiSpec, len(doc.Paths))
	for pathKey, item := range doc.Paths {
		ops := make(map[string]specOp)
		for method, node := range item {
			methodLower := strings.ToLower(strings.TrimSpace(method))
			if _, supported := supportedMethods[methodLower]; !supported {
				// Path items also carry keys like parameters and $ref.
				continue
			}

			var op rawOp
			if err := node.Decode(&op); err != nil {
				return nil, fmt.Errorf("%s %s: %w", methodLower, pathKey, err)
			}
			ops[methodLower] = newSpecOp(op)
		}
		if len(ops) > 0 {
			spec[pathKey] = ops
		}
	}

	return spec, nil
}

func newSpecOp(raw rawOp) specOp {
	op := specOp{
		secured:   len(raw.Security) > 0,
		required:  make(map[string]struct{}),
		responses: make(map[string]struct{}, len(raw.Responses)),
	}
	for _, p := range raw.Parameters {
		if p.Required {
			op.required[p.In+":"+p.Name] = struct{}{}
		}
	}
	for code := range raw.Responses {
		if normalized := strings.TrimSpace(code); normalized != "" {
			op.responses[normalized] = struct{}{}
		}
	}
	return op
}

func breakingChanges(base, revision apiSpec) []string {
	var issues []string

	for path, baseOps := range base {
		revOps, ok := revision[path]
		if !ok {
			issues = append(issues, fmt.Sprintf("removed path: %s", path))
			continue
		}

		for method, baseOp := range baseOps {
			label := strings.ToUpper(method) + " " + path
			revOp, ok := revOps[method]
			if !ok {
				issues = append(issues, "removed operation: "+label)
				continue
			}

			if revOp.secured && !baseOp.secured {
				issues = append(issues, "operation now requires auth: "+label)
			}

			for param := range revOp.required {
				if _, ok := baseOp.required[param]; !ok {
					issues = append(issues, fmt.Sprintf("new required parameter: %s -> %s", label, param))
				}
			}

			for code := range baseOp.responses {
				if _, ok := revOp.responses[code]; !ok {
					issues = append(issues, fmt.Sprintf("removed response code: %s -> %s", label, code))
				}
			}
		}
	}

	sort.Strings(issues)
	return issues
}

func inventory(spec apiSpec) []string {
	lines := make([]string, 0, len(spec))
	for path, ops := range spec {
		for method, op := range ops {
			access := "public"
			if op.secured {
				access = "auth"
			}
			lines = append(lines, fmt.Sprintf("%s %s [%s]", path, strings.ToUpper(method), access))
		}
	}
	sort.Strings(lines)
	return lines
}
