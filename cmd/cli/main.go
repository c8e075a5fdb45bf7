// Command v2x-kernel runs the intersection simulation headless for a fixed
// tick count and writes the final snapshot JSON to stdout, mirroring the
// teacher's read-input/run/write-output CLI shape.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/sarabaciu19/V2X-Intersection-Safety/internal/config"
	"github.com/sarabaciu19/V2X-Intersection-Safety/internal/engine"
)

func main() {
	scenarioName := flag.String("scenario", "", "scenario to load (default: the engine's built-in default)")
	ticks := flag.Int("ticks", 300, "number of ticks to run")
	envPath := flag.String("env", "", "path to a .env file (default: .env in the working directory)")
	flag.Parse()

	log := logrus.StandardLogger()
	cfg := config.Load(*envPath)

	e := engine.New(cfg, log)
	if *scenarioName != "" {
		if _, err := e.Reset(*scenarioName); err != nil {
			fmt.Fprintf(os.Stderr, "error loading scenario: %v\n", err)
			os.Exit(1)
		}
	}

	for i := 0; i < *ticks; i++ {
		e.Step()
	}

	data, err := json.MarshalIndent(e.Snapshot(), "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error marshaling snapshot: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(data))
}
