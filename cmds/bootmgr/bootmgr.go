package main

import (
	"log/slog"
	"os"

	"github.com/systemboot/bootmgr/pkg/config"
	"gopkg.in/alecthomas/kingpin.v2"
)

const (
	// Author is the author
	Author = "systemboot authors"
	// HelpText is the command line help
	HelpText = "A boot manager for firmware boot options"
)

var goversion string

var (
	configFile = kingpin.Flag("config", "Path to the YAML configuration").Default(config.DefaultPath).String()
	storeName  = kingpin.Flag("store", "Variable store: efivarfs or vpd").Enum(config.StoreEFIVarFS, config.StoreVPD)
	efivarsDir = kingpin.Flag("efivars", "efivarfs mount point").String()
	vpdDir     = kingpin.Flag("vpd", "VPD sysfs directory").String()
	debug      = kingpin.Flag("debug", "Verbose logging").Bool()

	list    = kingpin.Command("list", "List boot options")
	listAll = list.Flag("all", "Include hidden options").Bool()

	show       = kingpin.Command("show", "Show one boot option")
	showNumber = show.Arg("number", "Boot option number, e.g. 0001 or Boot0001").Required().String()

	boot        = kingpin.Command("boot", "Launch a boot option, BootNext or the first active one by default")
	bootNumber  = boot.Arg("number", "Boot option number, e.g. 0001 or Boot0001").String()
	bootRecover = boot.Flag("recover", "Apply the recovery policy when the launch fails").Bool()

	menu = kingpin.Command("menu", "Choose a boot option interactively")
)

func main() {
	kingpin.UsageTemplate(kingpin.CompactUsageTemplate).Version(goversion).Author(Author)
	kingpin.CommandLine.Help = HelpText
	cmd := kingpin.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	cfg, err := loadConfig()
	if err != nil {
		log.Error("cannot load configuration", "err", err)
		os.Exit(1)
	}
	e := newEnv(cfg, log)

	switch cmd {
	case list.FullCommand():
		err = e.list(os.Stdout, *listAll)
	case show.FullCommand():
		err = e.show(os.Stdout, *showNumber)
	case boot.FullCommand():
		err = e.boot(*bootNumber, *bootRecover)
	case menu.FullCommand():
		err = runMenu(os.Stdin, os.Stdout, e.enumerate, e.controller)
	default:
		log.Error("command not found", "command", cmd)
		os.Exit(2)
	}
	if err != nil {
		log.Error(cmd+" failed", "err", err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration, then applies flag overrides. The
// default path is allowed to be missing.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFile(*configFile, *configFile == config.DefaultPath)
	if err != nil {
		return nil, err
	}
	if *storeName != "" {
		cfg.Store = *storeName
	}
	if *efivarsDir != "" {
		cfg.EFIVarsDir = *efivarsDir
	}
	if *vpdDir != "" {
		cfg.VPDDir = *vpdDir
	}
	return cfg, cfg.Validate()
}
