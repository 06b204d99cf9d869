package config

import (
	"encoding/json"
	"log"

	"github.com/alecthomas/kong"
)

const (
	jukeGlobalPath  = "/etc/juke.json"
	jukeLocalPath   = "~/.config/juke.json"
	jukeProjectPath = "./juke.json"
)

type CLI struct {
	Config             kong.ConfigFlag `name:"config" env:"CONFIG" help:"path to a custom config file" json:"config"`
	Host               string          `name:"host" default:"" env:"HOST" help:"host name (e.g. 0.0.0.0). If left empty (= ''), listens on all IPs of the machine" json:"host"`
	Port               uint16          `name:"port" default:"8000" env:"PORT" help:"port (range from 0 to 65535) to listen on" json:"port"`
	Cert               string          `name:"cert" default:"" env:"CERT" help:"path to TLS certificate file. If none is given, plain TCP is used" json:"cert"`
	Key                string          `name:"key" default:"" env:"KEY" help:"path to TLS key corresponding to the TLS certificate. If none is given, plain TCP is used" json:"key"`
	SupabaseURL        string          `name:"supabase-url" default:"" env:"SUPABASE_URL" help:"base URL of the Supabase project used for track storage" json:"supabase_url"`
	SupabaseKey        string          `name:"supabase-key" default:"" env:"SUPABASE_KEY" help:"Supabase service key" json:"supabase_key"`
	SupabaseBucket     string          `name:"supabase-bucket" default:"jukebox-tracks" env:"SUPABASE_BUCKET" help:"Supabase storage bucket holding ingested tracks" json:"supabase_bucket"`
	CloudflareDomain   string          `name:"cloudflare-domain" default:"" env:"CLOUDFLARE_DOMAIN" help:"optional CDN domain; public track URLs are rewritten to it, keeping the bucket/key path" json:"cloudflare_domain"`
	DownloadRateLimit  int             `name:"download-rate-limit" default:"5" env:"YOUTUBE_DOWNLOAD_RATE_LIMIT" help:"maximum download requests admitted per rate window" json:"download_rate_limit"`
	DownloadRateWindow int             `name:"download-rate-window" default:"60" env:"YOUTUBE_DOWNLOAD_RATE_WINDOW" help:"length (in seconds) of the download admission window" json:"download_rate_window"`
	DownloadMaxWorkers int             `name:"download-max-workers" default:"3" env:"YOUTUBE_DOWNLOAD_MAX_WORKERS" help:"number of concurrent ingest workers" json:"download_max_workers"`
	DownloadMaxMB      int             `name:"download-max-mb" default:"50" env:"YOUTUBE_DOWNLOAD_MAX_MB" help:"maximum estimated audio size (in MiB) admitted for ingest" json:"download_max_mb"`
	Debug              bool            `name:"debug" env:"DEBUG" help:"whether to log debugging entries" json:"debug"`
}

// Parses command arguments, environment variables and config file in case one is given.
// Order of precedence is: environment variables < config file < command arguments
func ParseCommandArgs() CLI {
	var cli CLI
	kong.Parse(&cli,
		kong.Name("juke server"),
		kong.Description("Run the juke synchronized jukebox server"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: false,
		}),
		kong.Configuration(kong.JSON, jukeGlobalPath, jukeLocalPath, jukeProjectPath),
	)

	return cli
}

func PrintConfig(cli CLI) {
	s, _ := json.MarshalIndent(cli, "", "\t")
	log.Printf("Configurations successfully set:\n%s", string(s))
}
