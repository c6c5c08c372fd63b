/*
 * Copyright 2025 SREDiag Authors
 * Copyright 2023 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package gamelink

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/valyala/bytebufferpool"

	internalshm "github.com/srediag/gamelink/internal/shm"
)

// Log levels, lowest is most verbose.
const (
	LevelTrace = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelNoPrint
)

var (
	level atomic.Int32

	magenta = string([]byte{27, 91, 57, 53, 109}) // Trace
	green   = string([]byte{27, 91, 57, 50, 109}) // Debug
	blue    = string([]byte{27, 91, 57, 52, 109}) // Info
	yellow  = string([]byte{27, 91, 57, 51, 109}) // Warn
	red     = string([]byte{27, 91, 57, 49, 109}) // Error
	reset   = string([]byte{27, 91, 48, 109})

	internalLogger = NewLogger("gamelink", os.Stdout)

	colors    = []string{magenta, green, blue, yellow, red}
	levelName = []string{"Trace", "Debug", "Info", "Warn", "Error"}
)

func init() {
	level.Store(LevelWarn)
	if v := os.Getenv("GAMELINK_LOG_LEVEL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= LevelTrace && n <= LevelNoPrint {
			level.Store(int32(n))
		}
	}
}

// SetLogLevel changes the level of every gamelink logger. The default is Warn; the process
// env `GAMELINK_LOG_LEVEL` also sets it.
func SetLogLevel(l int) {
	if l >= LevelTrace && l <= LevelNoPrint {
		level.Store(int32(l))
	}
}

// Logger is the leveled logger shared by the link components.
type Logger struct {
	name      string
	out       io.Writer
	callDepth int
}

// NewLogger returns a logger tagged with name. A nil out writes to stdout.
func NewLogger(name string, out io.Writer) *Logger {
	if out == nil {
		out = os.Stdout
	}
	return &Logger{name: name, out: out, callDepth: 4}
}

func (l *Logger) logf(lv int, format string, a ...interface{}) {
	if int(level.Load()) > lv {
		return
	}
	if _, err := fmt.Fprintf(l.out, l.prefix(lv)+format+reset+"\n", a...); err != nil {
		fmt.Fprintf(os.Stderr, "gamelink logger failed: %v\n", err)
	}
}

func (l *Logger) Errorf(format string, a ...interface{}) { l.logf(LevelError, format, a...) }
func (l *Logger) Warnf(format string, a ...interface{})  { l.logf(LevelWarn, format, a...) }
func (l *Logger) Infof(format string, a ...interface{})  { l.logf(LevelInfo, format, a...) }
func (l *Logger) Debugf(format string, a ...interface{}) { l.logf(LevelDebug, format, a...) }
func (l *Logger) Tracef(format string, a ...interface{}) { l.logf(LevelTrace, format, a...) }

func (l *Logger) prefix(lv int) string {
	var buffer [64]byte
	buf := bytes.NewBuffer(buffer[:0])
	_, _ = buf.WriteString(colors[lv])
	_, _ = buf.WriteString(levelName[lv])
	_ = buf.WriteByte(' ')
	_, _ = buf.WriteString(time.Now().Format("2006-01-02 15:04:05.999999"))
	_ = buf.WriteByte(' ')
	_, _ = buf.WriteString(l.location())
	_ = buf.WriteByte(' ')
	_, _ = buf.WriteString(l.name)
	_ = buf.WriteByte(' ')
	return buf.String()
}

func (l *Logger) location() string {
	_, file, line, ok := runtime.Caller(l.callDepth)
	if !ok {
		file = "???"
		line = 0
	}
	return filepath.Base(file) + ":" + strconv.Itoa(line)
}

// DebugRegionDetail prints the header of the link region mapped under name, without
// taking the mutex.
func DebugRegionDetail(w io.Writer, name string) error {
	ctx := context.Background()
	region, err := internalshm.MapRegion(ctx, internalshm.MapOptions{Name: name})
	if err != nil {
		return err
	}
	defer internalshm.UnmapRegion(ctx, region) //nolint:errcheck // read-only inspection
	mem := region.Addr
	if len(mem) < HeaderSize {
		return fmt.Errorf("%w: %d bytes", ErrRegionTooSmall, len(mem))
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	fmt.Fprintf(buf, "name:%s size:%d version:%d flags:%#02x\n", name, len(mem), mem[offVersion], mem[offFlags])
	fmt.Fprintf(buf, "system:%q program:%q\n", cString(mem[offSystem:offSystem+SystemMaxLen]),
		cString(mem[offProgram:offProgram+ProgramMaxLen]))
	f := mem[offFrame:]
	fmt.Fprintf(buf, "frame seq:%d %dx%d fmt:%d par:%d/%d\n",
		binary.LittleEndian.Uint16(f[frameSeq:]), binary.LittleEndian.Uint16(f[frameWidth:]),
		binary.LittleEndian.Uint16(f[frameHeight:]), f[frameImageFmt],
		binary.LittleEndian.Uint16(f[frameParX:]), binary.LittleEndian.Uint16(f[frameParY:]))
	fmt.Fprintf(buf, "peek count:%d tohost:%d recv:%d audio:%d/%d ram:%d\n",
		binary.LittleEndian.Uint32(mem[offPeek+peekAddrCount:]),
		binary.LittleEndian.Uint16(mem[offBufToHost:]), binary.LittleEndian.Uint16(mem[offBufRecv:]),
		mem[offAudio], mem[offAudio+1], binary.LittleEndian.Uint32(mem[offRAMSize:]))
	_, err = w.Write(buf.B)
	return err
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
