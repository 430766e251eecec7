package elbv2

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	elb "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"

	"github.com/Sh00ty/cloud-nlb/rds-tg-sync/internal/models"
)

type api interface {
	DescribeTargetHealth(ctx context.Context, params *elb.DescribeTargetHealthInput, optFns ...func(*elb.Options)) (*elb.DescribeTargetHealthOutput, error)
	RegisterTargets(ctx context.Context, params *elb.RegisterTargetsInput, optFns ...func(*elb.Options)) (*elb.RegisterTargetsOutput, error)
	DeregisterTargets(ctx context.Context, params *elb.DeregisterTargetsInput, optFns ...func(*elb.Options)) (*elb.DeregisterTargetsOutput, error)
}

// Registry is the target group of a network load balancer.
type Registry struct {
	client api
}

func NewRegistry(cfg aws.Config) *Registry {
	return &Registry{client: elb.NewFromConfig(cfg)}
}

// ListTargets returns the ids of registered targets in the order the load
// balancer reports them, whatever their health state.
func (r *Registry) ListTargets(ctx context.Context, tg models.TargetGroupID) ([]string, error) {
	resp, err := r.client.DescribeTargetHealth(ctx, &elb.DescribeTargetHealthInput{
		TargetGroupArn: aws.String(string(tg)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe target health: %w", err)
	}
	result := make([]string, 0, len(resp.TargetHealthDescriptions))
	for _, desc := range resp.TargetHealthDescriptions {
		if desc.Target == nil || desc.Target.Id == nil {
			continue
		}
		result = append(result, aws.ToString(desc.Target.Id))
	}
	return result, nil
}

func (r *Registry) RegisterTargets(ctx context.Context, tg models.TargetGroupID, targets []models.Target) error {
	_, err := r.client.RegisterTargets(ctx, &elb.RegisterTargetsInput{
		TargetGroupArn: aws.String(string(tg)),
		Targets:        targetDescriptions(targets),
	})
	if err != nil {
		return fmt.Errorf("failed to register %d targets: %w", len(targets), err)
	}
	return nil
}

func (r *Registry) DeregisterTargets(ctx context.Context, tg models.TargetGroupID, targets []models.Target) error {
	_, err := r.client.DeregisterTargets(ctx, &elb.DeregisterTargetsInput{
		TargetGroupArn: aws.String(string(tg)),
		Targets:        targetDescriptions(targets),
	})
	if err != nil {
		return fmt.Errorf("failed to deregister %d targets: %w", len(targets), err)
	}
	return nil
}

func targetDescriptions(targets []models.Target) []types.TargetDescription {
	result := make([]types.TargetDescription, 0, len(targets))
	for _, target := range targets {
		result = append(result, types.TargetDescription{
			Id:   aws.String(target.Addr),
			Port: aws.Int32(target.Port),
		})
	}
	return result
}
