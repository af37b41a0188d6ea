package main

import (
	"fmt"
	"os"
	"strings"

	cli "github.com/spf13/pflag"

	"emobridge/internal/ipc"
)

const usage = `Usage: emo-bridgectl [flags] <command> [arg]

Commands:
  start             start the voice session
  stop              stop the voice session
  status            show daemon status
  interrupt         cut the assistant off mid-sentence
  persona <name>    switch the active persona
  say <text>        speak text through the bridge's voice
  transcribe <file> transcribe an audio file (wav, mp3, ogg, opus)
  reload            re-read the config file and apply it
`

func main() {
	sockPath := cli.StringP("socket", "s", ipc.DefaultSocketPath, "Control socket path")
	cli.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		cli.PrintDefaults()
	}
	cli.Parse()

	args := cli.Args()
	if len(args) == 0 {
		cli.Usage()
		os.Exit(2)
	}

	req := ipc.Request{Cmd: args[0]}
	if len(args) > 1 {
		req.Arg = strings.Join(args[1:], " ")
	}

	resp, err := ipc.Send(*sockPath, req)
	if err != nil {
		fmt.Fprintln(os.Stderr, "emo-bridged not running:", err)
		os.Exit(1)
	}

	if resp.Error != "" {
		fmt.Fprintln(os.Stderr, "error:", resp.Error)
		os.Exit(1)
	}

	if resp.Text != "" {
		fmt.Println(resp.Text)
		return
	}

	if resp.Status != nil {
		fmt.Printf("running: %v\n", resp.Status.Running)
		fmt.Printf("state:   %s\n", resp.Status.State)
		fmt.Printf("persona: %s\n", resp.Status.Persona)
		fmt.Printf("uptime:  %s\n", resp.Status.Uptime)
		return
	}

	fmt.Println("ok")
}
