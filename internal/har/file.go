package har

import "os"

func openHar(path string) (*os.File, error) {
	return os.Open(path)
}
