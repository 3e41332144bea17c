package invocation

import (
	"context"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/google/uuid"
)

// Context is the invocation context handed to the child as its first argument.
// Field names follow the context object of the Lambda node.js runtime so that
// existing child executables keep decoding it.
type Context struct {
	CallbackWaitsForEmptyEventLoop bool           `json:"callbackWaitsForEmptyEventLoop"`
	LogGroupName                   string         `json:"logGroupName"`
	LogStreamName                  string         `json:"logStreamName"`
	FunctionName                   string         `json:"functionName"`
	MemoryLimitInMB                string         `json:"memoryLimitInMB"`
	FunctionVersion                string         `json:"functionVersion"`
	InvokeID                       string         `json:"invokeid"`
	AwsRequestID                   string         `json:"awsRequestId"`
	InvokedFunctionArn             string         `json:"invokedFunctionArn"`
	Identity                       *Identity      `json:"identity,omitempty"`
	ClientContext                  *ClientContext `json:"clientContext,omitempty"`
	// RemainingTimeMs is the time left until the invocation deadline when the
	// child was started. Zero means no deadline.
	RemainingTimeMs int64 `json:"remainingTimeMs,omitempty"`
}

type Identity struct {
	CognitoIdentityID     string `json:"cognitoIdentityId"`
	CognitoIdentityPoolID string `json:"cognitoIdentityPoolId"`
}

type ClientContext struct {
	Client ClientApplication `json:"client"`
	Env    map[string]string `json:"env,omitempty"`
	Custom map[string]string `json:"custom,omitempty"`
}

type ClientApplication struct {
	InstallationID string `json:"installation_id"`
	AppTitle       string `json:"app_title"`
	AppVersionCode string `json:"app_version_code"`
	AppPackageName string `json:"app_package_name"`
}

// FromLambda builds the invocation context from the Lambda runtime context.
func FromLambda(ctx context.Context) *Context {
	c := &Context{
		LogGroupName:    lambdacontext.LogGroupName,
		LogStreamName:   lambdacontext.LogStreamName,
		FunctionName:    lambdacontext.FunctionName,
		MemoryLimitInMB: strconv.Itoa(lambdacontext.MemoryLimitInMB),
		FunctionVersion: lambdacontext.FunctionVersion,
	}

	if lc, ok := lambdacontext.FromContext(ctx); ok {
		c.AwsRequestID = lc.AwsRequestID
		c.InvokeID = lc.AwsRequestID
		c.InvokedFunctionArn = lc.InvokedFunctionArn
		if lc.Identity.CognitoIdentityID != "" || lc.Identity.CognitoIdentityPoolID != "" {
			c.Identity = &Identity{
				CognitoIdentityID:     lc.Identity.CognitoIdentityID,
				CognitoIdentityPoolID: lc.Identity.CognitoIdentityPoolID,
			}
		}
		if lc.ClientContext.Client.InstallationID != "" || len(lc.ClientContext.Custom) > 0 || len(lc.ClientContext.Env) > 0 {
			c.ClientContext = &ClientContext{
				Client: ClientApplication{
					InstallationID: lc.ClientContext.Client.InstallationID,
					AppTitle:       lc.ClientContext.Client.AppTitle,
					AppVersionCode: lc.ClientContext.Client.AppVersionCode,
					AppPackageName: lc.ClientContext.Client.AppPackageName,
				},
				Env:    lc.ClientContext.Env,
				Custom: lc.ClientContext.Custom,
			}
		}
	}

	c.setDeadline(ctx)
	return c
}

// Local builds an invocation context for invocations that do not come from
// Lambda, with a freshly generated request id.
func Local(ctx context.Context, functionName string) *Context {
	id := uuid.NewString()
	c := &Context{
		FunctionName:    functionName,
		FunctionVersion: "$LATEST",
		AwsRequestID:    id,
		InvokeID:        id,
	}
	c.setDeadline(ctx)
	return c
}

func (c *Context) setDeadline(ctx context.Context) {
	if deadline, ok := ctx.Deadline(); ok {
		c.RemainingTimeMs = max(time.Until(deadline).Milliseconds(), 0)
	}
}
