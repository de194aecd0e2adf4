// Command lwm2mdpd is the demo binary for the data plane, mirroring the teacher's
// cmd/inventoryd flag layout (-c/-config, -init, -v/-version) over the new Config.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	lwm2mdp "funahara/lwm2mdp"
)

const version = "0.1.0"
const defaultConfigPath = "./config.json"

func main() {
	var (
		dispVersion bool
		configPath  string
		initConfig  bool
		endpoint    string
	)
	flag.BoolVar(&dispVersion, "v", false, "print version")
	flag.BoolVar(&dispVersion, "version", false, "print version")
	flag.StringVar(&configPath, "c", defaultConfigPath, "path to config file")
	flag.StringVar(&configPath, "config", defaultConfigPath, "path to config file")
	flag.BoolVar(&initConfig, "init", false, "create a default config file if missing")
	flag.StringVar(&endpoint, "endpoint", "", "override endpointClientName")
	flag.Parse()

	if dispVersion {
		fmt.Printf("lwm2mdpd: version %s\n", version)
		os.Exit(0)
	}

	if !strings.HasPrefix(configPath, "/") {
		cwd, _ := os.Getwd()
		configPath = filepath.Join(cwd, configPath)
	}

	if initConfig {
		promptCreateDefault(configPath)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "config file %s does not exist; run with -init or -c\n", configPath)
		os.Exit(1)
	}

	config, err := lwm2mdp.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config %s: %v\n", configPath, err)
		os.Exit(1)
	}

	if endpoint != "" {
		config.EndpointClientName = endpoint
		if err := lwm2mdp.SaveConfig(configPath, config); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	// The CoAP transport and session core are external collaborators (spec.md §1
	// Non-goals); wiring them in is left to the embedding application.
	dp := lwm2mdp.New(config, nil, nil, nil)

	if err := dp.Run(nil); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func promptCreateDefault(configPath string) {
	if _, err := os.Stat(configPath); !os.IsNotExist(err) {
		return
	}
	fmt.Printf("config file %s does not exist. create a default one? [Y/n]: ", configPath)
	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		os.Exit(1)
	}
	answer := strings.ToLower(scanner.Text())
	if answer != "" && answer != "y" && answer != "yes" {
		fmt.Println("run with -init again once ready, or pass -c with an existing config")
		os.Exit(1)
	}
	if err := lwm2mdp.CreateDefaultConfig(configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
