package core

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sarchlab/tritsim/simerr"
	"gopkg.in/yaml.v3"
)

// An Instruction is one assembly line. Opcodes and operands are kept as
// written; the machine decodes them when they are fetched.
type Instruction struct {
	Opcode   string
	Operands []string
	Line     int
}

func (i Instruction) String() string {
	if len(i.Operands) == 0 {
		return i.Opcode
	}

	return i.Opcode + " " + strings.Join(i.Operands, ", ")
}

// A Program is a loaded instruction sequence with its labels and interrupt
// vectors.
type Program struct {
	Name         string
	Instructions []Instruction
	Labels       map[string]int
	Vectors      map[int]int
}

// Len returns the number of instructions.
func (p Program) Len() int {
	return len(p.Instructions)
}

func (p Program) String() string {
	var sb strings.Builder

	byAddr := make(map[int][]string)
	for l, a := range p.Labels {
		byAddr[a] = append(byAddr[a], l)
	}

	for pc, inst := range p.Instructions {
		for _, l := range byAddr[pc] {
			fmt.Fprintf(&sb, "%s:\n", l)
		}

		fmt.Fprintf(&sb, "%4d  %s\n", pc, inst)
	}

	return sb.String()
}

// ResolveTarget turns a label or a decimal address into an address.
func (p Program) ResolveTarget(s string) (int, error) {
	if addr, ok := p.Labels[s]; ok {
		return addr, nil
	}

	addr, err := strconv.Atoi(s)
	if err != nil {
		return 0, simerr.New(simerr.KindDecode, "core.ResolveTarget",
			"unknown label %q", s)
	}

	return addr, nil
}

func splitOperands(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})

	return fields
}

func stripComment(line string) string {
	if i := strings.IndexAny(line, ";#"); i >= 0 {
		return line[:i]
	}

	return line
}

// ParseProgram reads assembly text. Each line holds at most one
// instruction, optionally preceded by "label:". The ".vector <n> <label>"
// directive binds an interrupt vector to a handler.
func ParseProgram(name, src string) (Program, error) {
	prog := Program{
		Name:    name,
		Labels:  make(map[string]int),
		Vectors: make(map[int]int),
	}

	type pendingVector struct {
		vector int
		target string
		line   int
	}

	var vectors []pendingVector

	scanner := bufio.NewScanner(strings.NewReader(src))
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := strings.TrimSpace(stripComment(scanner.Text()))

		for {
			colon := strings.Index(line, ":")
			if colon < 0 || strings.ContainsAny(line[:colon], " \t,") {
				break
			}

			label := line[:colon]
			if _, dup := prog.Labels[label]; dup {
				return Program{}, simerr.New(simerr.KindDecode,
					"core.ParseProgram", "line %d: duplicate label %q",
					lineNo, label)
			}

			prog.Labels[label] = len(prog.Instructions)
			line = strings.TrimSpace(line[colon+1:])
		}

		if line == "" {
			continue
		}

		fields := splitOperands(line)

		if strings.EqualFold(fields[0], ".vector") {
			if len(fields) != 3 {
				return Program{}, simerr.New(simerr.KindDecode,
					"core.ParseProgram", "line %d: .vector needs a number and a target",
					lineNo)
			}

			v, err := strconv.Atoi(fields[1])
			if err != nil || v < 0 {
				return Program{}, simerr.New(simerr.KindDecode,
					"core.ParseProgram", "line %d: bad vector %q", lineNo, fields[1])
			}

			vectors = append(vectors, pendingVector{v, fields[2], lineNo})

			continue
		}

		prog.Instructions = append(prog.Instructions, Instruction{
			Opcode:   fields[0],
			Operands: fields[1:],
			Line:     lineNo,
		})
	}

	if err := scanner.Err(); err != nil {
		return Program{}, simerr.Wrap(simerr.KindDecode, "core.ParseProgram", err)
	}

	for _, v := range vectors {
		addr, err := prog.ResolveTarget(v.target)
		if err != nil {
			return Program{}, simerr.New(simerr.KindDecode, "core.ParseProgram",
				"line %d: %v", v.line, err)
		}

		prog.Vectors[v.vector] = addr
	}

	return prog, nil
}

// MustParseProgram is ParseProgram for programs embedded in code. It
// panics on error.
func MustParseProgram(name, src string) Program {
	p, err := ParseProgram(name, src)
	if err != nil {
		panic(err)
	}

	return p
}

type yamlProgram struct {
	Name         string         `yaml:"name"`
	Vectors      map[int]string `yaml:"vectors"`
	Instructions []string       `yaml:"instructions"`
	Source       string         `yaml:"source"`
}

// LoadProgramFromYAML reads a program document with either an
// "instructions" list or a "source" block, plus optional vectors.
func LoadProgramFromYAML(data []byte) (Program, error) {
	var doc yamlProgram
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Program{}, simerr.Wrap(simerr.KindDecode, "core.LoadProgramFromYAML", err)
	}

	var sb strings.Builder
	sb.WriteString(doc.Source)
	sb.WriteString("\n")

	for _, line := range doc.Instructions {
		sb.WriteString(line)
		sb.WriteString("\n")
	}

	for v, target := range doc.Vectors {
		fmt.Fprintf(&sb, ".vector %d %s\n", v, target)
	}

	return ParseProgram(doc.Name, sb.String())
}

// LoadProgramFile loads a .yaml/.yml document or an assembly file.
func LoadProgramFile(path string) (Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Program{}, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		p, err := LoadProgramFromYAML(data)
		if err == nil && p.Name == "" {
			p.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}

		return p, err
	default:
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		return ParseProgram(name, string(data))
	}
}
