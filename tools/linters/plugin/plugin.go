// Command plugin exposes the repository analyzers to golangci-lint as a Go
// plugin (go build -buildmode=plugin).
package main

import (
	"golang.org/x/tools/go/analysis"

	"laivdata.app/agentdesk/tools/linters/enumvalidator"
)

type AnalyzerPlugin struct{}

func (*AnalyzerPlugin) GetAnalyzers() []*analysis.Analyzer {
	return analyzers()
}

func New(conf any) ([]*analysis.Analyzer, error) {
	return analyzers(), nil
}

func analyzers() []*analysis.Analyzer {
	return []*analysis.Analyzer{enumvalidator.Analyzer}
}

func main() {}
