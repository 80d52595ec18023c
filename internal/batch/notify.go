package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
)

// TaskNotifier reports the outcome of a batch run to whatever launched it.
type TaskNotifier interface {
	Success(ctx context.Context, rep Report) error
	Failure(ctx context.Context, code, cause string) error
}

// NopNotifier is used when the batch runs without a task token.
type NopNotifier struct{}

func (NopNotifier) Success(context.Context, Report) error        { return nil }
func (NopNotifier) Failure(context.Context, string, string) error { return nil }

// SFNAPI is the part of *sfn.Client the notifier calls.
type SFNAPI interface {
	SendTaskSuccess(ctx context.Context, in *sfn.SendTaskSuccessInput, optFns ...func(*sfn.Options)) (*sfn.SendTaskSuccessOutput, error)
	SendTaskFailure(ctx context.Context, in *sfn.SendTaskFailureInput, optFns ...func(*sfn.Options)) (*sfn.SendTaskFailureOutput, error)
}

// SFNNotifier completes a Step Functions task token.
type SFNNotifier struct {
	client SFNAPI
	token  string
}

// NewSFNNotifier returns a notifier for taskToken.  The token is required.
func NewSFNNotifier(client SFNAPI, taskToken string) (*SFNNotifier, error) {
	if client == nil {
		return nil, errors.New("sfn client is required")
	}
	if taskToken == "" {
		return nil, errors.New("task token is required")
	}
	return &SFNNotifier{client: client, token: taskToken}, nil
}

// Success sends the report as the task output.
func (n *SFNNotifier) Success(ctx context.Context, rep Report) error {
	out, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	_, err = n.client.SendTaskSuccess(ctx, &sfn.SendTaskSuccessInput{
		TaskToken: aws.String(n.token),
		Output:    aws.String(string(out)),
	})
	return err
}

// Failure fails the task with code and cause.
func (n *SFNNotifier) Failure(ctx context.Context, code, cause string) error {
	_, err := n.client.SendTaskFailure(ctx, &sfn.SendTaskFailureInput{
		TaskToken: aws.String(n.token),
		Error:     aws.String(code),
		Cause:     aws.String(cause),
	})
	return err
}
