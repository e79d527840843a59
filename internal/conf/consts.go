// conf/consts.go hard coded constants
package conf

const (
	AppName        = "audiokit"
	ConfigName     = "config"
	ConfigFileName = "config.yaml"
	EnvPrefix      = "AUDIOKIT"

	WorkerModeInProcess = "inprocess" // worker runs as a goroutine behind an in-memory pipe
	WorkerModeProcess   = "process"   // worker runs as a child process over stdin/stdout
)
