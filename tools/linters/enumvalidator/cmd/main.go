package main

import (
	"golang.org/x/tools/go/analysis/singlechecker"

	"laivdata.app/agentdesk/tools/linters/enumvalidator"
)

func main() {
	singlechecker.Main(enumvalidator.Analyzer)
}
