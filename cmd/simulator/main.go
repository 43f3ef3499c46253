package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
)

var (
	serverURL    = flag.String("server", "http://localhost:8080", "Skill server base URL")
	skillName    = flag.String("skill", "gemini", "Skill name in the endpoint path")
	skillID      = flag.String("skill-id", "", "Skill application id sent in every envelope")
	locale       = flag.String("locale", "en-US", "Request locale")
	queryIntent  = flag.String("intent", "GeminiQueryIntent", "Intent used for freeform questions")
	questionSlot = flag.String("slot", "question", "Slot holding the question")
	timeout      = flag.Duration("timeout", 10*time.Second, "Per-request timeout")
	verbose      = flag.Bool("verbose", false, "Enable verbose logging")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] [command [text]]\n\n", os.Args[0])
		fmt.Fprintln(os.Stderr, "Without a command the simulator starts in interactive mode.")
		fmt.Fprintln(os.Stderr, "")
		printCommands(os.Stderr)
		fmt.Fprintln(os.Stderr, "")
		flag.PrintDefaults()
	}
	flag.Parse()

	// Setup logger
	var logger *zap.Logger
	var err error
	if *verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger = zap.NewNop()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	simulator := NewSimulator(&SimulatorConfig{
		ServerURL:    *serverURL,
		Skill:        *skillName,
		SkillID:      *skillID,
		Locale:       *locale,
		Timeout:      *timeout,
		QueryIntent:  *queryIntent,
		QuestionSlot: *questionSlot,
	}, nil, logger)

	if flag.NArg() > 0 {
		resp, err := simulator.Execute(strings.Join(flag.Args(), " "))
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		printResponse(os.Stdout, resp)
		return
	}

	fmt.Println("Alexa Skill Simulator - Interactive Mode")
	fmt.Println("========================================")
	fmt.Printf("Endpoint: %s\n\n", simulator.endpoint())
	printCommands(os.Stdout)
	fmt.Println("")

	simulator.RunInteractive(os.Stdin, os.Stdout)
}

func printCommands(w *os.File) {
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  launch              - Open the skill")
	fmt.Fprintln(w, "  ask <question>      - Ask a freeform question")
	fmt.Fprintln(w, "  help                - Send AMAZON.HelpIntent")
	fmt.Fprintln(w, "  stop | cancel       - Send AMAZON.StopIntent / AMAZON.CancelIntent")
	fmt.Fprintln(w, "  end [reason]        - Send SessionEndedRequest")
	fmt.Fprintln(w, "  intent <name>       - Send an arbitrary intent")
	fmt.Fprintln(w, "  quit                - Exit simulator")
	fmt.Fprintln(w, "Any other text is sent as a question.")
}
