package version

import "fmt"

// Значения подставляются при сборке:
// -ldflags "-X github.com/vladislavdragonenkov/storefront/internal/version.version=v1.2.3"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// GetVersion возвращает версию сборки.
func GetVersion() string { return version }

// GetCommit возвращает хэш коммита.
func GetCommit() string { return commit }

// GetDate возвращает дату сборки.
func GetDate() string { return date }

// UserAgent отправляется клиентом Order Service: storefront/<version> (<commit>).
func UserAgent() string {
	if commit == "" || commit == "unknown" {
		return "storefront/" + version
	}
	short := commit
	if len(short) > 7 {
		short = short[:7]
	}
	return fmt.Sprintf("storefront/%s (%s)", version, short)
}

func String() string {
	return fmt.Sprintf("version=%s commit=%s date=%s", version, commit, date)
}
