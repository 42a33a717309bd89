// Package syntax provides a small recursive-descent reader that turns
// a shell-like script into an internal/ast tree. It is deliberately not
// a full POSIX grammar (that's an explicit Non-goal): it covers simple
// commands, pipelines, &&/||, if/for/while, subshells, assignments and
// command substitution — enough to exercise the execution engine.
package syntax

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nexusshell/nexusshell/internal/ast"
)

type parser struct {
	toks []token
	pos  int
}

// Parse lexes and parses src into a Program.
func Parse(src string) (*ast.Program, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, fmt.Errorf("syntax: %w", err)
	}
	p := &parser{toks: toks}
	prog := &ast.Program{}
	for !p.at(tokEOF) {
		stmt, err := p.statement()
		if err != nil {
			return nil, err
		}
		prog.Statements = append(prog.Statements, stmt)
		for p.at(tokSemi) {
			p.advance()
		}
	}
	return prog, nil
}

func (p *parser) cur() token  { return p.toks[p.pos] }
func (p *parser) at(k tokenKind) bool { return p.cur().kind == k }
func (p *parser) advance() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) expect(k tokenKind, what string) (token, error) {
	if !p.at(k) {
		return token{}, fmt.Errorf("syntax: expected %s, found %q", what, p.cur().text)
	}
	return p.advance(), nil
}

// block parses statements separated by ';' until a stop keyword/token.
func (p *parser) block(stop ...tokenKind) (ast.Node, error) {
	isStop := func(k tokenKind) bool {
		for _, s := range stop {
			if k == s {
				return true
			}
		}
		return false
	}
	prog := &ast.Program{}
	for !p.at(tokEOF) && !isStop(p.cur().kind) {
		stmt, err := p.statement()
		if err != nil {
			return nil, err
		}
		prog.Statements = append(prog.Statements, stmt)
		for p.at(tokSemi) {
			p.advance()
		}
	}
	return prog, nil
}

func (p *parser) statement() (ast.Node, error) {
	node, err := p.logicalOr()
	if err != nil {
		return nil, err
	}
	if p.at(tokAmp) {
		p.advance()
		if cmd, ok := node.(*ast.Command); ok {
			cmd.Background = true
		}
	}
	return node, nil
}

func (p *parser) logicalOr() (ast.Node, error) {
	left, err := p.logicalAnd()
	if err != nil {
		return nil, err
	}
	for p.at(tokOr) {
		p.advance()
		right, err := p.logicalAnd()
		if err != nil {
			return nil, err
		}
		left = &ast.LogicalOr{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) logicalAnd() (ast.Node, error) {
	left, err := p.pipeline()
	if err != nil {
		return nil, err
	}
	for p.at(tokAnd) {
		p.advance()
		right, err := p.pipeline()
		if err != nil {
			return nil, err
		}
		left = &ast.LogicalAnd{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) pipeline() (ast.Node, error) {
	first, err := p.unit()
	if err != nil {
		return nil, err
	}
	if !p.at(tokPipe) {
		return first, nil
	}
	elems := []ast.Node{first}
	for p.at(tokPipe) {
		p.advance()
		next, err := p.unit()
		if err != nil {
			return nil, err
		}
		elems = append(elems, next)
	}
	return &ast.Pipeline{Elements: elems}, nil
}

func (p *parser) unit() (ast.Node, error) {
	switch p.cur().kind {
	case tokIf:
		return p.ifStmt()
	case tokFor:
		return p.forStmt()
	case tokWhile:
		return p.whileStmt()
	case tokLParen:
		return p.subshell()
	default:
		return p.simpleCommand()
	}
}

func (p *parser) ifStmt() (ast.Node, error) {
	p.advance() // if
	cond, err := p.logicalOr()
	if err != nil {
		return nil, err
	}
	for p.at(tokSemi) {
		p.advance()
	}
	if _, err := p.expect(tokThen, "then"); err != nil {
		return nil, err
	}
	then, err := p.block(tokElse, tokFi)
	if err != nil {
		return nil, err
	}
	var elseNode ast.Node
	if p.at(tokElse) {
		p.advance()
		elseNode, err = p.block(tokFi)
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(tokFi, "fi"); err != nil {
		return nil, err
	}
	return &ast.If{Cond: cond, Then: then, Else: elseNode}, nil
}

func (p *parser) forStmt() (ast.Node, error) {
	p.advance() // for
	name, err := p.expect(tokWord, "loop variable")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokIn, "in"); err != nil {
		return nil, err
	}
	var items []ast.Node
	for p.at(tokWord) || p.at(tokVariable) || p.at(tokCommandSub) {
		item, err := p.wordLike()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	for p.at(tokSemi) {
		p.advance()
	}
	if _, err := p.expect(tokDo, "do"); err != nil {
		return nil, err
	}
	body, err := p.block(tokDone)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokDone, "done"); err != nil {
		return nil, err
	}
	return &ast.For{Var: name.text, Iterable: &ast.Pipeline{Elements: items}, Body: body}, nil
}

func (p *parser) whileStmt() (ast.Node, error) {
	p.advance() // while
	cond, err := p.logicalOr()
	if err != nil {
		return nil, err
	}
	for p.at(tokSemi) {
		p.advance()
	}
	if _, err := p.expect(tokDo, "do"); err != nil {
		return nil, err
	}
	body, err := p.block(tokDone)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokDone, "done"); err != nil {
		return nil, err
	}
	return &ast.While{Cond: cond, Body: body}, nil
}

func (p *parser) subshell() (ast.Node, error) {
	p.advance() // (
	body, err := p.block(tokRParen)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokRParen, ")"); err != nil {
		return nil, err
	}
	prog, _ := body.(*ast.Program)
	var cmds []ast.Node
	if prog != nil {
		cmds = prog.Statements
	}
	return &ast.Subshell{Commands: cmds}, nil
}

func (p *parser) simpleCommand() (ast.Node, error) {
	if p.at(tokWord) && isAssignment(p.cur().text) {
		return p.assignment()
	}
	name, err := p.wordLike()
	if err != nil {
		return nil, err
	}
	var args []ast.Node
	for p.at(tokWord) || p.at(tokVariable) || p.at(tokCommandSub) {
		arg, err := p.wordLike()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	return &ast.Command{Name: name, Args: args}, nil
}

func (p *parser) assignment() (ast.Node, error) {
	tok := p.advance()
	name, value, _ := strings.Cut(tok.text, "=")
	var valNode ast.Node
	if n, err := strconv.ParseInt(value, 10, 64); err == nil {
		valNode = &ast.NumberLiteral{Value: n}
	} else {
		valNode = &ast.StringLiteral{Value: value}
	}
	return &ast.VariableAssignment{Name: name, Value: valNode}, nil
}

func (p *parser) wordLike() (ast.Node, error) {
	switch p.cur().kind {
	case tokWord:
		t := p.advance()
		if n, err := strconv.ParseInt(t.text, 10, 64); err == nil {
			return &ast.NumberLiteral{Value: n}, nil
		}
		return &ast.StringLiteral{Value: t.text}, nil
	case tokVariable:
		t := p.advance()
		return &ast.VariableReference{Name: t.text}, nil
	case tokCommandSub:
		t := p.advance()
		inner, err := Parse(t.text)
		if err != nil {
			return nil, err
		}
		return &ast.CommandSubstitution{Command: inner}, nil
	default:
		return nil, fmt.Errorf("syntax: expected word, found %q", p.cur().text)
	}
}

func isAssignment(word string) bool {
	name, _, found := strings.Cut(word, "=")
	if !found || name == "" {
		return false
	}
	for i, r := range name {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (i > 0 && r >= '0' && r <= '9') {
			continue
		}
		return false
	}
	return true
}
