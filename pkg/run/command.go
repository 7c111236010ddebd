/*
   Flompy - floppy disk dumper
   Copyright (c) 2021, Alexander Vollschwitz

   This file is part of Flompy.

   Flompy is free software: you can redistribute it and/or modify
   it under the terms of the GNU General Public License as published by
   the Free Software Foundation, either version 3 of the License, or
   (at your option) any later version.

   Flompy is distributed in the hope that it will be useful,
   but WITHOUT ANY WARRANTY; without even the implied warranty of
   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
   GNU General Public License for more details.

   You should have received a copy of the GNU General Public License
   along with Flompy. If not, see <http://www.gnu.org/licenses/>.
*/


package run

import (
	"errors"
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

//
const epilogueHeader = `
Notes:

`

/*
	Logging is set up from the environment:

		LOG_FORMAT		set to `json` for JSON logging
		LOG_FORCE_COLORS	set to non-empty for forcing colorized log entries
		LOG_METHODS		set to non-empty for including methods in log
		LOG_LEVEL		`panic`, `fatal`, `error`, `warn`, `info`, `debug`, `trace`

	Log output goes to stderr, since dumps and status replies are written to
	stdout.
*/
func init() {
	configureLogging(os.Getenv)
}

//
func configureLogging(getenv func(string) string) {

	log.SetOutput(os.Stderr)

	switch {
	case strings.ToLower(getenv("LOG_FORMAT")) == "json":
		log.SetFormatter(&log.JSONFormatter{})
	case getenv("LOG_FORCE_COLORS") != "":
		log.SetFormatter(&log.TextFormatter{ForceColors: true})
	default:
		log.SetFormatter(&log.TextFormatter{})
	}

	log.SetReportCaller(getenv("LOG_METHODS") != "")

	if level := getenv("LOG_LEVEL"); level != "" {
		l, err := log.ParseLevel(level)
		if err != nil {
			log.Errorf("invalid log level: '%s'; valid levels are: panic, "+
				"fatal, error, warn, info, debug, trace", level)
		} else {
			log.SetLevel(l)
		}
	}
}

// UnderTest turns process exits into panics.
var UnderTest bool

// ErrArgs marks problems with the command line.
var ErrArgs = errors.New("invalid arguments")

// DieOnError exits the running process if e is not nil, with the exit code
// that belongs to e.
func DieOnError(e error) {
	if e != nil {
		fmt.Fprintf(os.Stderr, "%v\n", e)
		if UnderTest {
			panic(e.Error())
		}
		os.Exit(ExitCode(e))
	}
}

// Die exits the running process with the argument failure code, printing
// the given message.
func Die(msg string, params ...interface{}) {
	txt := fmt.Sprintf(msg, params...)
	fmt.Fprint(os.Stderr, txt)
	if UnderTest {
		panic(txt)
	}
	os.Exit(exitArgs)
}

/*
	Command wraps a Cobra command and a Viper instance of its own. Settings are
	bound to a flag and optionally an environment variable, where the flag wins.
	A required setting is reported with both ways of giving it.
*/
type Command struct {
	//
	cmd *cobra.Command
	cfg *viper.Viper
	//
	settings []*setting
	//
	Args []string
	//
	helpEpilogue string
	helpFunc     func(*cobra.Command, []string)
}

/*
	NewCommand creates a base command. The exec function is invoked when the
	command's Execute method is called. Flag parsing errors are argument
	errors.
*/
func NewCommand(use, short, long, helpEpilogue string,
	exec func() error) *Command {

	ret := Command{
		cmd: &cobra.Command{
			Use:   use,
			Short: short,
			Long:  long,
			RunE: func(*cobra.Command, []string) error {
				return exec()
			},
			SilenceErrors:         true,
			SilenceUsage:          true,
			DisableFlagsInUseLine: true,
		},
		cfg:          viper.New(),
		helpEpilogue: helpEpilogue,
	}
	ret.helpFunc = ret.cmd.HelpFunc()
	ret.cmd.SetHelpFunc(ret.help)
	ret.cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", ErrArgs, err)
	})
	return &ret
}

/*
	FreeHelpShorthand makes -h available for a setting, leaving only --help
	for getting online help. This needs to be called before adding settings.
*/
func (c *Command) FreeHelpShorthand() {
	c.cmd.Flags().Bool("help", false, "help for "+c.cmd.Name())
}

//
func (c *Command) help(cmd *cobra.Command, args []string) {
	c.helpFunc(cmd, args)
	if c.helpEpilogue != "" {
		fmt.Fprintln(cmd.OutOrStdout(), epilogueHeader+c.helpEpilogue)
	} else {
		fmt.Fprintln(cmd.OutOrStdout())
	}
}

// Execute runs the command. If args is of non-zero length, it overrides
// os.Args.
func (c *Command) Execute(args []string) error {
	if len(args) > 0 {
		c.cmd.SetArgs(args)
	}
	return c.cmd.Execute()
}

/*
	AddSetting adds a setting to this command. Target points to a string, int,
	or bool that receives the value when settings get parsed. Flag is the long
	command line flag, short its single letter version, and env the environment
	variable that may carry the setting. def is the default value, nil for the
	zero value. A required setting does not take a default.
*/
func (c *Command) AddSetting(target interface{}, flag, short, env string,
	def interface{}, help string, required bool) {

	if required && def != nil {
		Die("required setting '%s' does not take a default value\n", flag)
	}

	if env != "" {
		help = fmt.Sprintf("%s (%s)", help, env)
	}

	flags := c.cmd.Flags()
	if err := addFlag(flags, target, flag, short, def, help); err != nil {
		Die("setting '%s': %v\n", flag, err)
	}

	if err := c.cfg.BindPFlag(flag, flags.Lookup(flag)); err != nil {
		Die("cannot bind setting '%s': %v\n", flag, err)
	}
	if env != "" {
		if err := c.cfg.BindEnv(flag, env); err != nil {
			Die("cannot bind setting '%s' to %s: %v\n", flag, env, err)
		}
	}

	log.Tracef("add setting: flag=%s, env=%s, type=%T", flag, env, target)
	c.settings = append(c.settings,
		&setting{flag: flag, env: env, required: required, target: target})
}

// addFlag defines a flag of the target's type on the given flag set
func addFlag(flags *pflag.FlagSet, target interface{}, flag, short string,
	def interface{}, help string) error {

	switch t := target.(type) {
	case *string:
		d, ok := defaultOf(def, "")
		if !ok {
			return errors.New("default value is not a string")
		}
		flags.StringVarP(t, flag, short, d, help)
	case *int:
		d, ok := defaultOf(def, 0)
		if !ok {
			return errors.New("default value is not an int")
		}
		flags.IntVarP(t, flag, short, d, help)
	case *bool:
		d, ok := defaultOf(def, false)
		if !ok {
			return errors.New("default value is not a bool")
		}
		flags.BoolVarP(t, flag, short, d, help)
	default:
		return fmt.Errorf("unsupported type %T", target)
	}

	return nil
}

//
func defaultOf[T any](def interface{}, zero T) (T, bool) {
	if def == nil {
		return zero, true
	}
	d, ok := def.(T)
	return d, ok
}

/*
	ParseSettings places the values of all settings in their targets. Call
	this from the exec function, before using any of the targets. A missing
	required setting is an argument error.
*/
func (c *Command) ParseSettings() error {
	for _, s := range c.settings {
		if err := s.load(c.cfg); err != nil {
			return fmt.Errorf("%w: %v", ErrArgs, err)
		}
	}
	c.Args = c.cmd.Flags().Args()
	return nil
}

//
type setting struct {
	flag     string
	env      string
	required bool
	target   interface{}
}

// load sets the target from flag, environment, or default, in that order
func (s *setting) load(cfg *viper.Viper) error {

	var val interface{}
	missing := false

	switch t := s.target.(type) {
	case *string:
		*t = cfg.GetString(s.flag)
		val, missing = *t, *t == ""
	case *int:
		*t = cfg.GetInt(s.flag)
		val, missing = *t, *t == 0
	case *bool:
		*t = cfg.GetBool(s.flag)
		val = *t
	}

	log.WithFields(log.Fields{
		"flag": s.flag, "set": cfg.IsSet(s.flag),
	}).Tracef("setting value: '%v'", val)

	if s.required && missing {
		msg := fmt.Sprintf("you need to specify the --%s command line flag",
			s.flag)
		if s.env != "" {
			msg = fmt.Sprintf("%s or the %s environment variable", msg, s.env)
		}
		return errors.New(msg)
	}
	return nil
}
