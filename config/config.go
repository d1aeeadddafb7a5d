package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mattn/go-colorable"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Will be set by go-build
var (
	Version string
	Rev     string
)

const envPrefix = "CROSS_TICKER"

func Parse() *Config {
	// Set log format
	formatter := &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05",
	}
	logrus.SetFormatter(formatter)
	logrus.SetOutput(colorable.NewColorableStderr()) // For Windows

	defaults := Default()
	showVersion := pflag.BoolP("version", "v", false, "Show version number")
	showHelp := pflag.BoolP("help", "h", false, "Show usage message")
	pflag.CommandLine.MarkHidden("help")
	pflag.BoolP("debug", "d", false, "Enable debug mode")
	pflag.BoolP("list-exchanges", "l", false, "List supported exchanges")
	pflag.IntP("refresh", "r", defaults.Refresh, "Auto refresh on every specified seconds, 0 to query once and exit, "+
		"\nnote every exchange has a rate limit, too frequent refresh may cause your IP banned by their servers")

	var configFile string
	pflag.StringVarP(&configFile, "config-file", "c", "", `Config file path, use "--example-config-file <path>" `+
		"to generate an example config file,\n"+
		"by default cross-ticker uses \"cross_ticker.yml\" in current directory or $HOME as config file")
	var exampleConfigFile string
	pflag.StringVar(&exampleConfigFile, "example-config-file", "",
		"Generate example config file to the specified file path, by default it outputs to stdout")
	pflag.Lookup("example-config-file").NoOptDefVal = "-"

	pflag.StringSliceP("show", "s", defaults.Columns, "Only show comma-separated columns")
	pflag.StringSliceP("assets", "a", defaults.Assets, "Comma-separated assets to track, quoted in BTC")
	pflag.StringP("proxy", "p", "", "Proxy used when sending HTTP request \n(eg. "+
		"\"http://localhost:7777\", \"https://localhost:7777\", \"socks5://localhost:1080\")")
	pflag.IntP("timeout", "t", defaults.Timeout, "HTTP request timeout in seconds")
	pflag.Int("cycle-timeout", defaults.CycleTimeout, "Seconds to wait for all exchanges in one refresh, "+
		"slower exchanges are reported as timed out")
	pflag.String("listen", "", "Serve snapshots, websocket updates and metrics on this address (eg. \":8080\")")
	pflag.String("redis-addr", "", "Publish every snapshot to this Redis server (eg. \"localhost:6379\")")
	pflag.CommandLine.SortFlags = false
	pflag.Usage = showUsageAndExit
	pflag.Parse()

	if *showHelp {
		showUsageAndExit()
	}

	if *showVersion {
		fmt.Fprintf(os.Stderr, "Version %s", Version)
		if Rev != "" {
			fmt.Fprintf(os.Stderr, ", build %s", Rev)
		}
		fmt.Fprintln(os.Stderr)
		os.Exit(0)
	}

	if exampleConfigFile != "" {
		writeExampleConfig(exampleConfigFile)
		os.Exit(0)
	}

	// A missing .env is fine
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.Warnf("Error reading .env file: %v", err)
	}

	setDefaults(viper.GetViper(), defaults)
	viper.BindPFlags(pflag.CommandLine)
	viper.BindPFlag("cycle_timeout", pflag.Lookup("cycle-timeout"))
	viper.BindPFlag("redis.addr", pflag.Lookup("redis-addr"))
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()
	// Set configure file
	viper.SetConfigName("cross_ticker") // name of config file (without extension)
	viper.AddConfigPath(".")            // path to look for the config file in
	viper.AddConfigPath("$HOME")        // optionally look for config in the HOME directory
	viper.AddConfigPath("/etc")         // and /etc
	if configFile != "" {
		viper.SetConfigFile(configFile)
	}
	err := viper.ReadInConfig() // Find and read the config file
	if err != nil {
		switch err.(type) {
		case viper.ConfigFileNotFoundError:
			logrus.Debugln("No config file found, using defaults")
		default:
			logrus.Warnf("Error reading config file: %v", err)
		}
	}
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		logrus.Fatalf("Failed to parse %q, error: %s\n", viper.ConfigFileUsed(), err)
	}
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	if pflag.NArg() != 0 {
		// command-line queries take precedence
		queries, assets := parseQueryFromCLI(pflag.Args())
		cfg.Queries = queries
		if len(assets) != 0 && !pflag.CommandLine.Changed("assets") {
			cfg.Assets = assets
		}
	}
	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("Invalid configuration: %v", err)
	}
	logrus.Debugln("Using config file:", viper.ConfigFileUsed())
	return &cfg
}

// setDefaults registers every key so AutomaticEnv can see keys that only live in config files
func setDefaults(v *viper.Viper, defaults *Config) {
	exchanges := make([]map[string]interface{}, 0, len(defaults.Queries))
	for _, query := range defaults.Queries {
		exchanges = append(exchanges, map[string]interface{}{"name": query.Name})
	}
	v.SetDefault("exchanges", exchanges)
	v.SetDefault("redis.key", defaults.Redis.Key)
	v.SetDefault("redis.channel", defaults.Redis.Channel)
	v.SetDefault("redis.ttl", defaults.Redis.TTL)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
}

func showUsageAndExit() {
	// Print usage message and exit
	fmt.Fprintf(os.Stderr, "\nUsage: %s [Options] [Exchange1[.ASSET] Exchange2[.ASSET] ...]\n", os.Args[0])
	fmt.Fprintln(os.Stderr, "\nCompare ETH, LTC and DASH prices (in BTC) across exchanges in the terminal")
	fmt.Fprintln(os.Stderr, "\nOptions:")
	pflag.PrintDefaults()
	fmt.Fprintln(os.Stderr, "\nSpace-separated exchange[.asset] pairs:")
	fmt.Fprintln(os.Stderr, "  Specify which exchanges to query, optionally followed by the asset to track"+
		" (eg. \"Exmo.ETH Coincap.ETH Bleutrade\"). Without an asset the --assets list is used.")
	fmt.Fprintln(os.Stderr, "\nFind help/updates from here - https://github.com/polyrabbit/cross-ticker")
	os.Exit(0)
}

func ExampleConfig() ([]byte, error) {
	return yaml.Marshal(Default())
}

func writeExampleConfig(fpath string) {
	exampleConfig, err := ExampleConfig()
	if err != nil {
		logrus.Fatalf("Failed to render example config, error: %v", err)
	}
	fout := os.Stdout
	if fpath != "-" {
		if _, err := os.Stat(fpath); err == nil {
			logrus.Warnf("%s already exists, skipping", fpath)
			return
		}
		if fout, err = os.Create(fpath); err != nil {
			logrus.Errorf("Failed to create config file %s, error: %v", fpath, err)
			return
		}
		defer fout.Close()
	}
	if _, err := fout.Write(exampleConfig); err != nil {
		logrus.Errorf("Failed to write config file %s, error: %v", fpath, err)
	} else if fout != os.Stdout {
		logrus.Infof("Write example config file to %s", fpath)
	}
}

func ListExchangesAndExit(exchanges []string) {
	fmt.Fprintln(os.Stderr, "Supported exchanges:")
	for _, name := range exchanges {
		fmt.Fprintf(os.Stderr, " %s\n", name)
	}
	os.Exit(0)
}

// CLI format exchange.<asset> - asset is optional
func parseQueryFromCLI(cliArgs []string) ([]*SourceQuery, []string) {
	var (
		lastExchangeDef *SourceQuery
		exchangeList    []*SourceQuery
		assets          []string
	)
	for _, arg := range cliArgs {
		tokenDef := strings.SplitN(arg, ".", 2)
		if tokenDef[0] == "" {
			logrus.Fatalf("Unrecognized exchange definition - %s, expecting {exchange}.<asset>\n", arg)
		}
		if lastExchangeDef == nil || !strings.EqualFold(lastExchangeDef.Name, tokenDef[0]) {
			// Merge consecutive exchange definitions
			// Do not sort/reorder here, to remain the order user specified
			lastExchangeDef = &SourceQuery{Name: tokenDef[0]}
			exchangeList = append(exchangeList, lastExchangeDef)
		}
		if len(tokenDef) == 2 && tokenDef[1] != "" {
			asset := strings.ToUpper(tokenDef[1])
			lastExchangeDef.Assets = append(lastExchangeDef.Assets, asset)
			assets = append(assets, asset)
		}
	}
	return exchangeList, assets
}
