// Package cli implements the reel command line.
package cli

import "fmt"

func Run(args []string) error {
	if len(args) == 0 {
		printRootUsage()
		return nil
	}

	switch args[0] {
	case "register":
		return runRegister(args[1:])
	case "login":
		return runLogin(args[1:])
	case "logout":
		return runLogout(args[1:])
	case "whoami":
		return runWhoami(args[1:])
	case "profile":
		return runProfile(args[1:])
	case "generate":
		return runGenerate(args[1:])
	case "list":
		return runList(args[1:])
	case "status":
		return runStatus(args[1:])
	case "code":
		return runCode(args[1:])
	case "download":
		return runDownload(args[1:])
	case "dashboard":
		return runDashboard(args[1:])
	case "stub-server":
		return runStubServer(args[1:])
	case "help", "-h", "--help":
		printRootUsage()
		return nil
	default:
		printRootUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printRootUsage() {
	fmt.Println("reel: generate math animations from text prompts")
	fmt.Println()
	fmt.Println("Quick Start:")
	fmt.Println("  reel login --email <email>")
	fmt.Println("  reel generate --wait \"a circle morphing into a square\"")
	fmt.Println("  reel download <id> --open")
	fmt.Println()
	fmt.Println("Account Commands:")
	fmt.Println("  register   create an account and save the session")
	fmt.Println("  login      log in and save the session")
	fmt.Println("  logout     forget the saved session and cached history")
	fmt.Println("  whoami     show the logged in user")
	fmt.Println("  profile    update the profile name")
	fmt.Println()
	fmt.Println("Video Commands:")
	fmt.Println("  generate   submit a prompt (--wait to follow it to completion)")
	fmt.Println("  list       list your videos (--offline reads the local cache)")
	fmt.Println("  status     show one video (--watch to poll until finished)")
	fmt.Println("  code       print the generated source (--copy for clipboard)")
	fmt.Println("  download   save the rendered video (--open to play it)")
	fmt.Println("  dashboard  interactive terminal dashboard")
	fmt.Println()
	fmt.Println("Development:")
	fmt.Println("  stub-server  run an in-memory backend for local testing")
	fmt.Println()
	fmt.Println("Notes:")
	fmt.Println("  - Settings come from ~/.config/reel/config.toml, .env and REEL_* variables")
	fmt.Println("  - Every command accepts --config, --api-url and --db")
	fmt.Println("  - Use --json on commands for machine-readable output")
}
