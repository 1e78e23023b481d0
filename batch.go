package takarik

import "context"

// FindInBatches walks the matching rows in batches of batchSize, invoking
// fn once per batch. The chain's own limit and offset are ignored for the
// walk and left untouched on the receiver. Iteration stops at the first
// short or empty batch, or when fn returns an error.
func (b *Builder) FindInBatches(ctx context.Context, batchSize int, fn func([]*Record) error) error {
	return b.findInBatches(ctx, 0, -1, batchSize, fn)
}

// FindInBatchesRange is FindInBatches bounded by row cursors: the walk
// begins at offset start and stops once the cursor passes finish.
func (b *Builder) FindInBatchesRange(ctx context.Context, start, finish, batchSize int, fn func([]*Record) error) error {
	return b.findInBatches(ctx, start, finish, batchSize, fn)
}

// FindEach walks the matching rows in batches of batchSize, invoking fn
// once per record.
func (b *Builder) FindEach(ctx context.Context, batchSize int, fn func(*Record) error) error {
	return b.FindInBatches(ctx, batchSize, func(recs []*Record) error {
		for _, rec := range recs {
			if err := fn(rec); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *Builder) findInBatches(ctx context.Context, start, finish, batchSize int, fn func([]*Record) error) error {
	if b.err != nil {
		return b.err
	}
	if batchSize <= 0 {
		return NewInvalidConditionError("batch size must be positive", batchSize)
	}
	cursor := start
	for {
		if finish >= 0 && cursor > finish {
			return nil
		}
		q := b.clone()
		q.limit = batchSize
		q.offset = cursor
		recs, err := q.All(ctx)
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			return nil
		}
		if err := fn(recs); err != nil {
			return err
		}
		if len(recs) < batchSize {
			return nil
		}
		cursor += batchSize
	}
}
