package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ehsaniara/shiplog/facade"
	"github.com/ehsaniara/shiplog/internal/config"
	"github.com/ehsaniara/shiplog/internal/logging"
	"github.com/ehsaniara/shiplog/internal/resolve"
	"github.com/ehsaniara/shiplog/internal/shutdown"
	"github.com/ehsaniara/shiplog/logmsg"
	"github.com/ehsaniara/shiplog/stats"
	"github.com/ehsaniara/shiplog/writer"
	writercloudwatch "github.com/ehsaniara/shiplog/writer/cloudwatch"
	writerkinesis "github.com/ehsaniara/shiplog/writer/kinesis"
	writersns "github.com/ehsaniara/shiplog/writer/sns"
)

func newTailCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tail",
		Short: "Read lines from stdin and forward each as a log message",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTail(cmd.Context())
		},
	}
}

func runTail(ctx context.Context) error {
	root, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("shiplogctl: %w", err)
	}

	level, err := logging.ParseLevel(root.Logging.Level)
	if err != nil {
		return fmt.Errorf("shiplogctl: %w", err)
	}
	log := logging.NewWithConfig(logging.Config{Level: level, Output: os.Stderr})

	core, err := buildCore(ctx, root, log)
	if err != nil {
		return fmt.Errorf("shiplogctl: %w", err)
	}

	if err := core.Start(ctx); err != nil {
		return fmt.Errorf("shiplogctl: starting writer: %w", err)
	}

	registry := shutdown.New(10 * time.Second)
	registry.Register(core)
	registry.Arm()
	defer registry.StopAll()

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		core.AddMessage(ctx, logmsg.New(time.Now(), scanner.Text()))
	}
	return scanner.Err()
}

// buildCore picks whichever single destination is configured and
// constructs its Specialization and Core. Running more than one
// destination from shiplogctl is out of scope for a manual smoke tool;
// real integrations construct one writer.Core per destination.
func buildCore(ctx context.Context, root *config.Root, log *logging.Logger) (*writer.Core, error) {
	switch {
	case root.CloudWatch != nil:
		return buildCloudWatchCore(ctx, root.CloudWatch, log)
	case root.Kinesis != nil:
		return buildKinesisCore(ctx, root.Kinesis, log)
	case root.SNS != nil:
		return buildSNSCore(ctx, root.SNS, log)
	default:
		return nil, fmt.Errorf("no destination configured")
	}
}

func commonConfig(w config.Writer) (writer.Config, error) {
	action, err := config.ParseDiscardAction(w.DiscardAction)
	if err != nil {
		return writer.Config{}, err
	}
	return writer.Config{
		BatchDelay:               w.BatchDelay,
		DiscardThreshold:         w.DiscardThreshold,
		DiscardAction:            action,
		TruncateOversizeMessages: w.TruncateOversizeMessages,
		Synchronous:              w.Synchronous,
		UseShutdownHook:          w.UseShutdownHook,
		InitializationTimeout:    w.InitializationTimeout,
		EnableBatchLogging:       w.EnableBatchLogging,
		DrainGrace:               10 * time.Second,
	}, nil
}

func buildCloudWatchCore(ctx context.Context, cw *config.CloudWatch, log *logging.Logger) (*writer.Core, error) {
	wcfg, err := commonConfig(cw.Writer)
	if err != nil {
		return nil, err
	}
	raw, err := resolve.Resolve(ctx, "cloudwatch", resolve.ClientSettings{
		Region:      cw.Client.Region,
		Endpoint:    cw.Client.Endpoint,
		AssumedRole: cw.Client.AssumedRole,
	})
	if err != nil {
		return nil, err
	}
	f := raw.(facade.CloudWatchLogs)
	st := stats.New()
	spec := writercloudwatch.New(writercloudwatch.Config{
		LogGroup:      cw.LogGroup,
		LogStream:     cw.LogStream,
		RetentionDays: cw.RetentionDays,
	}, f, st, log.WithField("destination", "cloudwatch"))
	return writer.New(wcfg, st, log, spec), nil
}

func buildKinesisCore(ctx context.Context, k *config.Kinesis, log *logging.Logger) (*writer.Core, error) {
	wcfg, err := commonConfig(k.Writer)
	if err != nil {
		return nil, err
	}
	raw, err := resolve.Resolve(ctx, "kinesis", resolve.ClientSettings{
		Region:      k.Client.Region,
		Endpoint:    k.Client.Endpoint,
		AssumedRole: k.Client.AssumedRole,
	})
	if err != nil {
		return nil, err
	}
	f := raw.(facade.Kinesis)
	st := stats.New()
	spec := writerkinesis.New(writerkinesis.Config{
		StreamName:     k.StreamName,
		PartitionKey:   k.PartitionKey,
		ShardCount:     k.ShardCount,
		RetentionHours: k.RetentionHours,
		AutoCreate:     k.AutoCreate,
	}, f, st, log.WithField("destination", "kinesis"))
	return writer.New(wcfg, st, log, spec), nil
}

func buildSNSCore(ctx context.Context, s *config.SNS, log *logging.Logger) (*writer.Core, error) {
	wcfg, err := commonConfig(s.Writer)
	if err != nil {
		return nil, err
	}
	raw, err := resolve.Resolve(ctx, "sns", resolve.ClientSettings{
		Region:      s.Client.Region,
		Endpoint:    s.Client.Endpoint,
		AssumedRole: s.Client.AssumedRole,
	})
	if err != nil {
		return nil, err
	}
	f := raw.(facade.SNS)
	st := stats.New()
	spec, err := writersns.New(writersns.Config{
		TopicARN:   s.TopicARN,
		TopicName:  s.TopicName,
		Subject:    s.Subject,
		AutoCreate: s.AutoCreate,
	}, f, st, log.WithField("destination", "sns"))
	if err != nil {
		return nil, err
	}
	return writer.New(wcfg, st, log, spec), nil
}
