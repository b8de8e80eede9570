package config

import (
    "log"
    "os"

    "github.com/joho/godotenv"
)

// LoadDotEnv loads path (".env" when empty) into the process environment
// if the file exists.  Containers inject variables directly and ship no
// file, so a missing file is not an error.  Variables already set win.
func LoadDotEnv(path string) {
    if path == "" {
        path = ".env"
    }
    if _, err := os.Stat(path); err != nil {
        return
    }
    if err := godotenv.Load(path); err != nil {
        log.Fatalf("load %s: %v", path, err)
    }
}
