/*
	(c) Copyright NetFoundry Inc. Inc.

	Licensed under the Apache License, Version 2.0 (the "License");
	you may not use this file except in compliance with the License.
	You may obtain a copy of the License at

	https://www.apache.org/licenses/LICENSE-2.0

	Unless required by applicable law or agreed to in writing, software
	distributed under the License is distributed on an "AS IS" BASIS,
	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
	See the License for the specific language governing permissions and
	limitations under the License.
*/

package subcmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"
)

func init() {
	RootCmd.AddCommand(NewHashPasswordCommand())
}

func NewHashPasswordCommand() *cobra.Command {
	hashCmd := &HashPasswordCommand{}

	cmd := &cobra.Command{
		Use:   "hash-password",
		Short: "Hash an admin password for VPNCTL_ADMIN_PASSWORD_HASH",
		Args:  cobra.NoArgs,
		RunE:  hashCmd.run,
	}

	cmd.Flags().IntVar(&hashCmd.Cost, "cost", bcrypt.DefaultCost, "bcrypt cost")

	return cmd
}

type HashPasswordCommand struct {
	Cost int
}

func (h *HashPasswordCommand) run(cmd *cobra.Command, args []string) error {
	password, err := readPassword(cmd.InOrStdin(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	if password == "" {
		return errors.New("password must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.Cost)
	if err != nil {
		return errors.Wrap(err, "unable to hash password")
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(hash))
	return err
}

// readPassword prompts without echo on a terminal and reads one line otherwise.
func readPassword(in io.Reader, prompt io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		_, _ = fmt.Fprint(prompt, "Password: ")
		data, err := term.ReadPassword(int(f.Fd()))
		_, _ = fmt.Fprintln(prompt)
		if err != nil {
			return "", errors.Wrap(err, "unable to read password")
		}
		return string(data), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", errors.Wrap(err, "unable to read password")
	}
	return strings.TrimRight(line, "\r\n"), nil
}
