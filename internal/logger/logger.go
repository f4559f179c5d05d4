package logger

import (
	"fmt"
	"os"
	"runtime"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"github.com/sirupsen/logrus"
)

// NewLogger 返回写入 ./logs/<name>/ 的文件日志器
// 按天切割，保留 7 天，软链指向当前文件
func NewLogger(name string) *logrus.Logger {
	l := logrus.New()
	dir := "./logs/" + name
	_ = os.MkdirAll(dir, 0755)

	writer, _ := rotatelogs.New(
		dir+"/"+name+".log.%Y-%m-%d",
		rotatelogs.WithLinkName(dir+"/"+name+".log"),
		rotatelogs.WithRotationTime(24*time.Hour),
		rotatelogs.WithMaxAge(7*24*time.Hour),
	)

	l.SetOutput(writer)
	l.SetFormatter(&logrus.TextFormatter{
		TimestampFormat: "2006-01-02 15:04:05",
		FullTimestamp:   true,
		CallerPrettyfier: func(f *runtime.Frame) (string, string) {
			return f.Function, fmt.Sprintf("%s:%d", f.File, f.Line)
		},
	})
	l.SetLevel(logrus.InfoLevel)
	return l
}
