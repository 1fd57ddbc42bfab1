package main

import (
	"go.streamcat.tech/core/internal/lint/divfirst"
	"golang.org/x/tools/go/analysis/singlechecker"
)

func main() {
	singlechecker.Main(divfirst.Analyzer)
}
