package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	hook = NewSubscriberHook()
)

func init() {
	logrus.SetOutput(NewTimeoutWriter(os.Stderr, time.Second))
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	logrus.SetLevel(InfoLevel)
	logrus.AddHook(hook)
}

func Traceln(format string, args ...interface{}) {
	logrus.Tracef(format, args...)
}

func Debugln(format string, args ...interface{}) {
	logrus.Debugf(format, args...)
}

func Infoln(format string, args ...interface{}) {
	logrus.Infof(format, args...)
}

func Warnln(format string, args ...interface{}) {
	logrus.Warnf(format, args...)
}

func Errorln(format string, args ...interface{}) {
	logrus.Errorf(format, args...)
}

func Fatalln(format string, args ...interface{}) {
	logrus.Fatalf(format, args...)
}

func SetOutput(out io.Writer) {
	logrus.SetOutput(out)
}

func GetLevel() Level {
	return logrus.GetLevel()
}

func SetLevel(newLevel Level) {
	logrus.SetLevel(newLevel)
}

// Subscribe 订阅指定级别及以上的日志, 不指定级别时接收全部
func Subscribe(levels ...Level) Subscriber {
	id := time.Now().Format(time.RFC3339Nano)
	sub := NewBaseSubscriber(id, levels...)
	hook.AddSubscriber(sub)
	return sub
}

func UnSubscribe(sub Subscriber) {
	hook.RemoveSubscriber(sub.uuid())
}

type timeoutWriter struct {
	out     io.Writer
	timeout time.Duration
}

// NewTimeoutWriter 写入超时后直接返回, 输出端卡住时不阻塞调用方
func NewTimeoutWriter(out io.Writer, timeout time.Duration) io.Writer {
	return &timeoutWriter{out: out, timeout: timeout}
}

type writeResult struct {
	n   int
	err error
}

func (w *timeoutWriter) Write(p []byte) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	// Write 返回后 p 会被复用
	data := append([]byte(nil), p...)
	done := make(chan writeResult, 1)
	go func() {
		n, err := w.out.Write(data)
		done <- writeResult{n: n, err: err}
	}()

	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("write timeout")
	case val := <-done:
		return val.n, val.err
	}
}
