package driver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/CadenFinley/cjsh-interp/internal/cerr"
	"github.com/CadenFinley/cjsh-interp/internal/cjsh/core"
	"github.com/CadenFinley/cjsh-interp/internal/cjsh/token"
)

// runStatementLine executes one logical statement line (§4.13 steps 3-6):
// split on top-level ';'/'&' into a job list, each job split on '&&'/'||'
// into a short-circuited and-or list, each surviving member split on '|'
// into a pipeline, and each pipeline stage built into a core.Command and
// handed to the PipelineExecutor — unless its head word names a defined
// function, which runs in-process instead. heredocBody is the body text
// captured by RunLines' heredoc pre-scan for this physical line, if any
// (empty string if the line has no heredoc redirection).
func (d *Driver) runStatementLine(ctx context.Context, line string, heredocBody string) (core.Result, error) {
	if d.verbose {
		d.logCtx(ctx, slog.LevelInfo, "+ "+line)
	}
	toks, err := token.Tokenize(line)
	if err != nil {
		return core.Fatal(err), err
	}
	if len(toks) == 0 {
		return core.OK(0), nil
	}

	jobs := splitSequential(toks)
	var last core.Result = core.OK(0)
	for _, job := range jobs {
		result, err := d.runAndOrList(ctx, job.toks, job.background, heredocBody)
		if err != nil || result.IsControlFlow() || result.Kind == core.ResultFatal {
			return result, err
		}
		last = result
		d.vars.SetLastStatus(result.ExitCode)
		if d.errexit && result.ExitCode != 0 {
			return result, nil
		}
	}
	return last, nil
}

type sequentialJob struct {
	toks       []core.Token
	background bool
}

// splitSequential splits a tokenized line at top-level ';' and trailing
// '&' (job separators, §3's grammar) into independent and-or lists.
func splitSequential(toks []core.Token) []sequentialJob {
	var jobs []sequentialJob
	var cur []core.Token
	for _, t := range toks {
		if t.IsOperator && (t.Value == ";" || t.Value == "&") {
			if len(cur) > 0 {
				jobs = append(jobs, sequentialJob{toks: cur, background: t.Value == "&"})
			}
			cur = nil
			continue
		}
		cur = append(cur, t)
	}
	if len(cur) > 0 {
		jobs = append(jobs, sequentialJob{toks: cur})
	}
	return jobs
}

type logicalSegment struct {
	toks        []core.Token
	precedingOp string // "", "&&", or "||"
}

// splitLogical splits a job's tokens at top-level '&&'/'||' (§3's and-or
// list grammar) into pipeline segments plus the operator that preceded
// each one.
func splitLogical(toks []core.Token) []logicalSegment {
	var segs []logicalSegment
	var cur []core.Token
	op := ""
	for _, t := range toks {
		if t.IsOperator && (t.Value == "&&" || t.Value == "||") {
			segs = append(segs, logicalSegment{toks: cur, precedingOp: op})
			cur = nil
			op = t.Value
			continue
		}
		cur = append(cur, t)
	}
	segs = append(segs, logicalSegment{toks: cur, precedingOp: op})
	return segs
}

// runAndOrList evaluates one and-or list (§4.13 step 6's short-circuit
// rule): each segment only runs if the previous actually-run segment's
// status satisfies its preceding &&/|| operator.
func (d *Driver) runAndOrList(ctx context.Context, toks []core.Token, background bool, heredocBody string) (core.Result, error) {
	segments := splitLogical(toks)
	status := 0
	var last core.Result = core.OK(0)
	for _, seg := range segments {
		switch seg.precedingOp {
		case "&&":
			if status != 0 {
				continue
			}
		case "||":
			if status == 0 {
				continue
			}
		}
		result, err := d.runPipeline(ctx, seg.toks, background, heredocBody)
		if err != nil || result.IsControlFlow() || result.Kind == core.ResultFatal {
			return result, err
		}
		status = result.ExitCode
		last = result
	}
	return last, nil
}

// runPipeline builds and runs one '|'-separated pipeline (§3, §4.13 step
// 6). A single-stage pipeline whose head word names a defined function
// runs in-process (callFunction) rather than going through the
// PipelineExecutor, since only the driver's function table knows it.
func (d *Driver) runPipeline(ctx context.Context, toks []core.Token, background bool, heredocBody string) (core.Result, error) {
	negate := false
	if len(toks) > 0 && !toks[0].IsOperator && toks[0].Value == "!" {
		negate = true
		toks = toks[1:]
	}
	stages := splitPipe(toks)
	if len(stages) == 0 {
		return core.OK(0), nil
	}

	if len(stages) == 1 {
		words, redirs, err := d.buildArgv(ctx, stages[0])
		if err != nil {
			return core.Fatal(err), err
		}
		if len(redirs) == 0 && len(words) > 0 && d.funcs.IsFunction(words[0]) {
			code, ferr := d.callFunction(ctx, words[0], words[1:])
			if ferr != nil {
				return core.Fatal(ferr), ferr
			}
			if negate {
				code = boolToStatus(code == 0)
			}
			d.vars.SetLastStatus(code)
			return core.OK(code), nil
		}
	}

	cmds := make([]*core.Command, 0, len(stages))
	usedHeredoc := false
	for _, stage := range stages {
		words, redirs, err := d.buildArgv(ctx, stage)
		if err != nil {
			return core.Fatal(err), err
		}
		cmd := &core.Command{Argv: words, Background: background, Redirections: redirs}
		if !usedHeredoc {
			for i := range cmd.Redirections {
				if cmd.Redirections[i].Kind == core.RedirHeredoc || cmd.Redirections[i].Kind == core.RedirHeredocStrip {
					cmd.HeredocBody = heredocBody
					usedHeredoc = true
					break
				}
			}
		}
		cmds = append(cmds, cmd)
	}
	cmds[len(cmds)-1].NegatePipeline = negate

	if d.pipeline == nil {
		err := cerr.NewError(cerr.Internal, "no pipeline executor configured", nil)
		return core.Fatal(err), err
	}
	code, err := d.pipeline.Execute(ctx, cmds)
	if err != nil {
		return core.Fatal(err), err
	}
	d.vars.SetPipestatus(d.pipeline.LastPipelineStatuses())
	d.vars.SetLastStatus(code)
	return core.OK(code), nil
}

func boolToStatus(ok bool) int {
	if ok {
		return 0
	}
	return 1
}

// splitPipe splits a segment's tokens at top-level '|' into pipeline
// stages.
func splitPipe(toks []core.Token) [][]core.Token {
	var stages [][]core.Token
	var cur []core.Token
	for _, t := range toks {
		if t.IsOperator && t.Value == "|" {
			stages = append(stages, cur)
			cur = nil
			continue
		}
		cur = append(cur, t)
	}
	stages = append(stages, cur)
	return stages
}

// buildArgv separates a pipeline stage's tokens into redirection
// operations and plain word tokens, then expands and field-splits the
// words (§4.13 step 5).
func (d *Driver) buildArgv(ctx context.Context, stageToks []core.Token) ([]string, []core.RedirectionOp, error) {
	var redirs []core.RedirectionOp
	var wordToks []core.Token

	i := 0
	for i < len(stageToks) {
		t := stageToks[i]
		if t.IsOperator && isRedirToken(t.Value) {
			op, next, target, err := parseRedirection(stageToks, i)
			if err != nil {
				return nil, nil, err
			}
			if target != "" {
				expanded, err := d.expandText(ctx, target)
				if err != nil {
					return nil, nil, err
				}
				op.Target = expanded
			}
			redirs = append(redirs, op)
			i = next
			continue
		}
		wordToks = append(wordToks, t)
		i++
	}

	rendered := make([]string, len(wordToks))
	for idx, t := range wordToks {
		rendered[idx] = renderWord(t)
	}
	words, err := d.ExpandWords(ctx, rendered)
	if err != nil {
		return nil, nil, err
	}
	return words, redirs, nil
}

// parseRedirection consumes the redirection operator token at toks[i]
// (and its source-fd digits, which the tokenizer merges into the
// operator string, e.g. "2>&") plus its target word token at toks[i+1],
// returning the parsed RedirectionOp, the index past the whole
// construct, and the raw (not-yet-expanded) target text. For an fd-dup
// operator the target word (e.g. the "1" after "2>&") is stored in the
// RedirectionOp's Target and the returned target text is "".
func parseRedirection(toks []core.Token, i int) (core.RedirectionOp, int, string, error) {
	opStr := toks[i].Value
	srcFD, op := splitFDPrefix(opStr)
	kind, isDup := redirKind(op)

	result := core.RedirectionOp{SourceFD: srcFD, Kind: kind}
	if isDup {
		// The tokenizer leaves the dup target (fd digits, or "-" to
		// close) as a separate word token after the operator, so it is
		// taken from toks[i+1] when the operator string carries no text
		// past the operator itself.
		rest := opStr[len(op)+digitLen(srcFD):]
		if rest == "" && i+1 < len(toks) && !toks[i+1].IsOperator {
			rest = toks[i+1].Value
			i++
		}
		return core.RedirectionOp{SourceFD: srcFD, Kind: kind, Target: rest}, i + 1, "", nil
	}

	if kind == core.RedirHeredoc || kind == core.RedirHeredocStrip {
		if i+1 >= len(toks) || toks[i+1].IsOperator {
			return result, i + 1, "", fmt.Errorf("syntax error near unexpected token after heredoc operator")
		}
		result.HeredocTag = toks[i+1].Value
		return result, i + 2, "", nil
	}

	if i+1 >= len(toks) || toks[i+1].IsOperator {
		return result, i + 1, "", fmt.Errorf("syntax error: redirection operator %q missing target", op)
	}
	return result, i + 2, toks[i+1].Value, nil
}

func digitLen(fd int) int {
	if fd < 0 {
		return 0
	}
	n := 1
	for fd >= 10 {
		fd /= 10
		n++
	}
	return n
}

// splitFDPrefix peels a leading digit run the tokenizer merged onto a
// redirection operator (e.g. "2>" -> (2, ">")), returning -1 when there
// is none.
func splitFDPrefix(op string) (int, string) {
	j := 0
	for j < len(op) && op[j] >= '0' && op[j] <= '9' {
		j++
	}
	if j == 0 {
		return -1, op
	}
	fd := 0
	for _, c := range op[:j] {
		fd = fd*10 + int(c-'0')
	}
	return fd, op[j:]
}

func isRedirToken(op string) bool {
	_, rest := splitFDPrefix(op)
	switch rest {
	case "<", ">", ">>", "<<", "<<-", "<<<", "<&", ">&", "<>", ">|", "&>", "&>>":
		return true
	default:
		return false
	}
}

// redirKind maps a bare (fd-prefix-stripped) operator string to its
// RedirectionKind, reporting whether it is an fd-dup form ("<&"/">&"
// followed by digits or "-", as opposed to ">&word" which some shells
// treat as shorthand for "&>word" — cjsh follows the original's simpler
// "digits or dash only" dup rule).
func redirKind(op string) (core.RedirectionKind, bool) {
	switch op {
	case "<":
		return core.RedirIn, false
	case ">":
		return core.RedirOut, false
	case ">>":
		return core.RedirAppend, false
	case "<<":
		return core.RedirHeredoc, false
	case "<<-":
		return core.RedirHeredocStrip, false
	case "<<<":
		return core.RedirHereString, false
	case "<>":
		return core.RedirReadWrite, false
	case ">|":
		return core.RedirOut, false
	case "&>", "&>>":
		return core.RedirBoth, false
	case "<&", ">&":
		return core.RedirFDDup, true
	default:
		return core.RedirOut, false
	}
}

// renderWord reconstructs a single-token word back into source-like
// text: quote characters are re-added only when the token actually came
// from a quoted run, which is what ExpandWords' "quoted means don't
// field-split" heuristic keys off of. '$' is left unescaped inside the
// rendered double quotes so a token like "$name" still reaches
// substituteBareVariables as an expandable reference rather than a
// literal backslash-dollar pair — substituteBareVariables has no notion
// of a protective escape, so escaping '$' here would only leave a stray
// backslash in the expanded value instead of actually suppressing
// expansion.
func renderWord(t core.Token) string {
	if t.Quote == core.Unquoted {
		return t.Value
	}
	if t.Quote == core.SingleQuoted && !strings.ContainsRune(t.Value, '\'') {
		return "'" + t.Value + "'"
	}
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(t.Value) + `"`
}
