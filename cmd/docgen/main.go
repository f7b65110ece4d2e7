// Command docgen builds the API reference page from the @Title/@Route
// annotations on the handlers in internal/api.
//
//	go run ./cmd/docgen
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

type Endpoint struct {
	Title       string
	Route       string
	Description string
	Response    string
}

var (
	reTitle = regexp.MustCompile(`// @Title: (.*)`)
	reRoute = regexp.MustCompile(`// @Route: (.*)`)
	reDesc  = regexp.MustCompile(`// @Description: (.*)`)
	reResp  = regexp.MustCompile(`// @Response: (.*)`)
)

func main() {
	apiDir := flag.String("api", "internal/api", "directory holding the annotated handlers")
	out := flag.String("out", "internal/docs/content/api.adoc", "output AsciiDoc file")
	flag.Parse()

	endpoints, err := collect(*apiDir)
	if err != nil {
		log.Fatalf("docgen: %v", err)
	}

	f, err := os.Create(*out)
	if err != nil {
		log.Fatalf("docgen: %v", err)
	}
	defer f.Close()

	if err := render(f, endpoints); err != nil {
		log.Fatalf("docgen: %v", err)
	}
	fmt.Printf("wrote %d endpoints to %s\n", len(endpoints), *out)
}

// collect scans every non-test Go file in dir for annotation blocks. A block
// ends at its @Response line.
func collect(dir string) ([]Endpoint, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var endpoints []Endpoint
	for _, file := range files {
		name := file.Name()
		if !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		found, err := scanFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		endpoints = append(endpoints, found...)
	}

	sort.SliceStable(endpoints, func(i, j int) bool {
		return routePath(endpoints[i].Route) < routePath(endpoints[j].Route)
	})
	return endpoints, nil
}

func scanFile(path string) ([]Endpoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return scan(f)
}

func scan(r io.Reader) ([]Endpoint, error) {
	var endpoints []Endpoint
	var current Endpoint

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()

		if match := reTitle.FindStringSubmatch(line); len(match) > 1 {
			current.Title = strings.TrimSpace(match[1])
		}
		if match := reRoute.FindStringSubmatch(line); len(match) > 1 {
			current.Route = strings.TrimSpace(match[1])
		}
		if match := reDesc.FindStringSubmatch(line); len(match) > 1 {
			current.Description = strings.TrimSpace(match[1])
		}
		if match := reResp.FindStringSubmatch(line); len(match) > 1 {
			current.Response = strings.TrimSpace(match[1])
			if current.Title != "" && current.Route != "" {
				endpoints = append(endpoints, current)
			}
			current = Endpoint{}
		}
	}
	return endpoints, scanner.Err()
}

func routePath(route string) string {
	if i := strings.IndexByte(route, ' '); i >= 0 {
		return route[i+1:]
	}
	return route
}

func render(w io.Writer, endpoints []Endpoint) error {
	var b strings.Builder
	b.WriteString("= API Reference\n")
	b.WriteString(":toc: left\n\n")
	b.WriteString("// Generated by cmd/docgen from handler annotations. Do not edit.\n\n")
	b.WriteString("All endpoints return JSON unless noted. Failed transactions return their\n")
	b.WriteString("receipt with the status listed in xref:errors.adoc[Error Codes].\n")

	for _, ep := range endpoints {
		fmt.Fprintf(&b, "\n== %s\n\n", ep.Title)
		fmt.Fprintf(&b, "`%s`\n\n", ep.Route)
		if ep.Description != "" {
			fmt.Fprintf(&b, "%s.\n\n", strings.TrimSuffix(ep.Description, "."))
		}
		fmt.Fprintf(&b, "Response:: `%s`\n", ep.Response)
	}

	_, err := io.WriteString(w, b.String())
	return err
}
