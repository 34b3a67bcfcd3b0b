package command

import (
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/urfave/cli/v2"

	errorpkg "github.com/condaops/conda-mirror/error"
	"github.com/condaops/conda-mirror/log"
)

// printError is the helper function to log error messages.
func printError(command, op string, err error) {
	// check if we have our own error type
	{
		cerr, ok := err.(*errorpkg.Error)
		if ok {
			log.Error(log.ErrorMessage{
				Err:       cleanupError(cerr),
				Command:   command,
				Operation: cerr.Op,
			})
			return
		}
	}

	// check if errors are aggregated
	{
		merr, ok := err.(*multierror.Error)
		if ok {
			for _, err := range merr.Errors {
				if errorpkg.IsCancelation(err) {
					continue
				}
				printError(command, op, err)
			}
			return
		}
	}

	// we don't know the exact error type. log the error as is.
	log.Error(log.ErrorMessage{
		Err:       cleanupError(err),
		Command:   command,
		Operation: op,
	})
}

// cleanupError converts multiline messages into a single line.
func cleanupError(err error) string {
	s := strings.Replace(err.Error(), "\n", " ", -1)
	s = strings.Replace(s, "\t", " ", -1)
	s = strings.Replace(s, "  ", " ", -1)
	s = strings.TrimSpace(s)
	return s
}

// commandFromContext reconstructs the invocation for error context.
func commandFromContext(c *cli.Context) string {
	cmd := c.App.Name

	for _, flagname := range c.FlagNames() {
		// never echo credential material back
		if strings.Contains(flagname, "key") || strings.Contains(flagname, "token") {
			continue
		}
		for _, value := range contextValues(c, flagname) {
			cmd += " --" + flagname + "=" + value
		}
	}

	return cmd
}

func contextValues(c *cli.Context, flagname string) []string {
	if !c.IsSet(flagname) {
		return nil
	}
	if values := c.StringSlice(flagname); len(values) > 1 {
		return values
	}
	value := c.String(flagname)
	if value == "" {
		return nil
	}
	return []string{value}
}
