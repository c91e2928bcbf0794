/*
 * Boxtin - a classfile transformer
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// boxtinctl is the batch CLI shell around the core (spec §0.3 of this
// expansion): load a Rules DSL file, load one classfile from disk, run it
// through ClassFileProcessor.Transform, and write back whatever comes out.
// It is not part of the core's contract — a real host agent drives
// ClassFileProcessor from java.lang.instrument's premain hook instead — but
// it is the ambient "how would a developer exercise this without a JVM"
// surface teacher itself ships as cli.go/cli_test.go at the root of src.
// Flag parsing is grounded on lazydocker/main.go's flaggy usage; the
// development/production logger split is grounded on
// lazydocker/pkg/log/log.go's NewLogger.
package main

import (
	"fmt"
	"os"

	"github.com/cojen/boxtin/src/boxerr"
	"github.com/cojen/boxtin/src/classfileprocessor"
	"github.com/cojen/boxtin/src/classgraph"
	"github.com/cojen/boxtin/src/memberfinder"
	"github.com/cojen/boxtin/src/rulesbuilder"

	goerrors "github.com/go-errors/errors"
	"github.com/integrii/flaggy"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

const version = "0.1.0"

var (
	rulesPath     string
	inPath        string
	outPath       string
	callerModule  = "app"
	classpathDirs []string
	trusted       bool
	debugFlag     bool
)

func main() {
	flaggy.SetName("boxtinctl")
	flaggy.SetDescription("Runs one classfile through boxtin's transformer, driven by a Rules DSL file.")
	flaggy.DefaultParser.AdditionalHelpPrepend = "https://github.com/cojen/boxtin"

	flaggy.String(&rulesPath, "r", "rules", "Path to a Rules DSL text file")
	flaggy.String(&inPath, "i", "in", "Path to the input .class file")
	flaggy.String(&outPath, "o", "out", "Path to write the transformed (or unchanged) .class file")
	flaggy.String(&callerModule, "m", "module", "Module identity of the class being transformed")
	flaggy.StringSlice(&classpathDirs, "c", "classpath", "Directory of .class files to resolve supertypes/members against (repeatable)")
	flaggy.Bool(&trusted, "t", "trusted", "Treat the input as a bootstrap-loader class: never transformed")
	flaggy.Bool(&debugFlag, "d", "debug", "Enable debug-level logging")
	flaggy.SetVersion(version)

	flaggy.Parse()

	log := newLogger(debugFlag)

	if err := run(log); err != nil {
		log.WithError(err).Error("boxtinctl failed")
		if goErr, ok := err.(*goerrors.Error); ok {
			fmt.Fprintln(os.Stderr, goErr.ErrorStack())
		}
		os.Exit(1)
	}
}

func run(log *logrus.Entry) error {
	if rulesPath == "" || inPath == "" || outPath == "" {
		return goerrors.New("boxtinctl: -rules, -in and -out are all required")
	}

	original, err := os.ReadFile(inPath)
	if err != nil {
		return goerrors.Wrap(err, 0)
	}

	if trusted {
		// Spec.md: "the bootstrap classloader's classes are never
		// transformed" — a non-goal the host agent enforces before ever
		// calling the core, so this CLI mirrors that by never invoking
		// Transform at all for a class marked -trusted.
		log.WithField("path", inPath).Info("trusted input, writing through unchanged")
		return os.WriteFile(outPath, original, 0o644)
	}

	rulesText, err := os.ReadFile(rulesPath)
	if err != nil {
		return goerrors.Wrap(err, 0)
	}
	builder, _, err := rulesbuilder.Parse(string(rulesText))
	if err != nil {
		return goerrors.Wrap(err, 0)
	}

	graph := classgraph.New(externalModule(), log)
	// classpathDirs may legitimately be empty (a self-contained class that
	// references nothing this policy names): loading zero directories just
	// means every cross-class reference resolves to "unknown", which the
	// checker already treats as a safe deny-at-target rather than a bypass.
	for _, dir := range lo.Uniq(classpathDirs) {
		log.WithField("dir", dir).Debug("scanning classpath directory")
		if err := graph.Load(dir); err != nil {
			return goerrors.Wrap(err, 0)
		}
	}

	if len(classpathDirs) > 0 {
		cache := memberfinder.NewCache(graph)
		if errs := builder.Validate(cache); len(errs) > 0 {
			for _, e := range errs {
				log.WithError(e).Warn("rules DSL names a member the classpath doesn't declare")
			}
			return goerrors.Errorf("boxtinctl: %d rule(s) failed validation against -classpath", len(errs))
		}
	}

	policy := builder.Build()
	processor := classfileprocessor.New(policy, graph.Lookup, log.WithField("component", "classfileprocessor"))

	transformed, err := processor.Transform(original, callerModule)
	if err != nil {
		// Any internal error is policy "deny the class" per spec §4.7 step
		// 7 — boxerr.ClassFormat is the kind Transform returns for almost
		// every failure (an invalid constant-pool Utf8 entry comes back as
		// boxerr.MalformedUtf), and boxerr.Is is the right way to recognize
		// it rather than asserting the concrete type.
		if boxerr.Is(err, boxerr.ClassFormat) {
			log.WithField("path", inPath).Warn("input rejected as malformed")
		}
		return goerrors.Wrap(err, 0)
	}

	if err := os.WriteFile(outPath, transformed, 0o644); err != nil {
		return goerrors.Wrap(err, 0)
	}
	log.WithField("changed", !sameBytes(original, transformed)).Info("wrote output class")
	return nil
}

// externalModule names the synthetic module every classgraph-loaded class
// is reported under: anything other than callerModule, so Checker's
// same-module fast path never masks a cross-module rule during a CLI run.
// A real host agent supplies each class's actual JPMS module instead; a flat
// -classpath directory carries no module-info of its own to read.
func externalModule() string {
	if callerModule == "classpath" {
		return "classpath.other"
	}
	return "classpath"
}

func sameBytes(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// newLogger splits development/production the way lazydocker's NewLogger
// does (debug flag or DEBUG env var selects a verbose text logger to
// stderr; otherwise a quiet, warn-level JSON logger), adapted for a
// one-shot CLI process rather than a long-lived TUI app (no log file: a
// batch tool's whole output belongs on the controlling terminal).
func newLogger(debug bool) *logrus.Entry {
	log := logrus.New()
	if debug || os.Getenv("DEBUG") == "TRUE" {
		log.SetLevel(logrus.DebugLevel)
		log.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	} else {
		log.SetLevel(logrus.WarnLevel)
		log.Formatter = &logrus.JSONFormatter{}
	}
	log.Out = os.Stderr
	return log.WithFields(logrus.Fields{"version": version})
}
